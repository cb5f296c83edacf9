package models

import "time"

// Heartbeat holds the parameters of an Uptime Kuma push. Empty fields fall
// back to the query parameters already present in URL, then to defaults.
type Heartbeat struct {
	URL     string
	Status  string // "up", "down" or "pending"
	Msg     string
	Ping    *int // milliseconds
	Timeout time.Duration
}

// HeartbeatResult holds the result of a heartbeat push.
type HeartbeatResult struct {
	Sent       bool
	FinalURL   string
	StatusCode int
	Error      error
}
