package models

// PushoverConfig holds Pushover API credentials.
type PushoverConfig struct {
	Token  string
	User   string
	Device string // optional target device
	Title  string // default title
}

// PushoverMessage holds a single push notification.
type PushoverMessage struct {
	Message  string
	Title    string // falls back to PushoverConfig.Title
	Priority *int   // nil means normal priority
	Retry    int    // seconds, emergency priority only
	Expire   int    // seconds, emergency priority only
}

// PushoverResult holds the result of a Pushover notification.
type PushoverResult struct {
	Sent      bool
	Receipt   string // set for emergency priority
	Corrected bool   // priority was out of range and replaced
	Error     error
}
