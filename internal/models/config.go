// Package models contains the data structures used throughout backupkit.
package models

import (
	"github.com/fgeck/backupkit/internal/size"
)

// AppConfig holds the complete monitoring configuration. It is built once by
// the config loader and never mutated afterwards.
type AppConfig struct {
	ToEmail          []string
	PushoverPriority int
	LogLevel         string // DEBUG, INFO, WARNING, ERROR or CRITICAL
	LogFile          string // optional
	MinFreeSpace     string // size string, e.g. "100 GB"
	UptimeKumaURL    string // optional, may carry query parameters
	BackupCheckList  []BackupCheckConfig
}

// MinFreeSpaceBytes parses MinFreeSpace on every call.
func (c AppConfig) MinFreeSpaceBytes() (int64, error) {
	return size.Parse(c.MinFreeSpace)
}

// BackupCheckConfig describes one monitored backup directory.
type BackupCheckConfig struct {
	Name      string
	BackupDir string
	Days      int    // freshness window
	MinSize   string // size string, e.g. "10 GB"
}

// MinSizeBytes parses MinSize on every call.
func (c BackupCheckConfig) MinSizeBytes() (int64, error) {
	return size.Parse(c.MinSize)
}
