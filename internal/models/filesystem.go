package models

import "time"

// DiskUsage holds filesystem capacity figures in bytes. The zero value means
// usage could not be determined.
type DiskUsage struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// Available reports whether the usage figures were read successfully.
func (u DiskUsage) Available() bool {
	return u.Total > 0
}

// FileEntry describes a regular file found while scanning a backup directory.
type FileEntry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FreeSpaceResult holds the outcome of a minimum free space check.
type FreeSpaceResult struct {
	Path       string
	Sufficient bool
	Free       uint64
	Required   int64
	Message    string
}
