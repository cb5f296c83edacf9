package models

import "time"

// BackupCheckResult holds the outcome of checking a single backup directory.
type BackupCheckResult struct {
	Name       string
	BackupDir  string
	Success    bool
	FileCount  int
	TotalSize  int64
	MinSize    int64
	AgeSummary string
	Error      string // empty on success
}

// BackupReport holds the outcome of a complete check run.
type BackupReport struct {
	StartTime time.Time
	Duration  time.Duration
	Host      string
	Results   []BackupCheckResult
	FreeSpace []FreeSpaceResult
	Errors    []string
}

// Failed returns the number of failed backup checks.
func (r BackupReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Success {
			n++
		}
	}
	return n
}

// OK reports whether every check passed and no run-level errors were recorded.
func (r BackupReport) OK() bool {
	return r.Failed() == 0 && len(r.Errors) == 0
}
