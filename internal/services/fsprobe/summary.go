package fsprobe

import (
	"fmt"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/size"
)

// TotalSize sums the sizes of files.
func TotalSize(files []models.FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// FormatDiskUsage renders u as "X total, Y used (P%), Z free".
func FormatDiskUsage(u models.DiskUsage) string {
	if !u.Available() {
		return "Disk usage unavailable"
	}
	percent := float64(u.Used) / float64(u.Total) * 100
	return fmt.Sprintf("%s total, %s used (%.1f%%), %s free",
		size.MustFormat(clampInt64(u.Total)),
		size.MustFormat(clampInt64(u.Used)),
		percent,
		size.MustFormat(clampInt64(u.Free)))
}

// FileAgeSummary describes the newest and oldest modification times in files
// relative to now, e.g. "3 files: newest 1.2 hours ago, oldest 2.5 days ago".
func FileAgeSummary(files []models.FileEntry, now time.Time) string {
	if len(files) == 0 {
		return "No files found"
	}

	newest, oldest := now.Sub(files[0].ModTime), now.Sub(files[0].ModTime)
	for _, f := range files[1:] {
		age := now.Sub(f.ModTime)
		if age < newest {
			newest = age
		}
		if age > oldest {
			oldest = age
		}
	}

	if len(files) == 1 {
		return "1 file: modified " + formatAge(newest)
	}
	return fmt.Sprintf("%d files: newest %s, oldest %s", len(files), formatAge(newest), formatAge(oldest))
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%.1f minutes ago", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1f hours ago", d.Hours())
	default:
		return fmt.Sprintf("%.1f days ago", d.Hours()/24)
	}
}
