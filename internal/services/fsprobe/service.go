// Package fsprobe inspects backup directories: accessibility, recently
// modified files and free space.
package fsprobe

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/size"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
)

// Service defines the interface for filesystem probe operations.
type Service interface {
	IsAccessible(path string) bool
	DiskUsage(path string) models.DiskUsage
	RecentFiles(dir string, days int, recursive bool) []models.FileEntry
	CheckFreeSpace(path string, minFree int64) models.FreeSpaceResult
}

// UsageFunc reads capacity figures for the filesystem holding path.
type UsageFunc func(path string) (models.DiskUsage, error)

// Impl implements the fsprobe Service interface.
type Impl struct {
	fs     afero.Fs
	usage  UsageFunc
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a probe backed by the OS filesystem.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		fs:     afero.NewOsFs(),
		usage:  statfsUsage,
		now:    time.Now,
		logger: logger,
	}
}

// NewWithFs creates a probe with a custom filesystem, usage source and clock (for testing).
func NewWithFs(logger zerolog.Logger, fsys afero.Fs, usage UsageFunc, now func() time.Time) *Impl {
	if now == nil {
		now = time.Now
	}
	return &Impl{
		fs:     fsys,
		usage:  usage,
		now:    now,
		logger: logger,
	}
}

func statfsUsage(path string) (models.DiskUsage, error) {
	st, err := disk.Usage(path)
	if err != nil {
		return models.DiskUsage{}, fmt.Errorf("reading disk usage: %w", err)
	}
	return models.DiskUsage{Total: st.Total, Used: st.Used, Free: st.Free}, nil
}

// IsAccessible reports whether path exists, is a directory, can be listed and
// sits on a filesystem that answers capacity queries. Failures are logged.
func (s *Impl) IsAccessible(path string) bool {
	full := expand(path)

	info, err := s.fs.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn().Str("path", path).Msg("directory does not exist")
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("directory not accessible")
		}
		return false
	}

	if !info.IsDir() {
		s.logger.Warn().Str("path", path).Msg("path is not a directory")
		return false
	}

	if _, err := afero.ReadDir(s.fs, full); err != nil {
		if os.IsPermission(err) {
			s.logger.Warn().Str("path", path).Msg("directory not readable (permission denied)")
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("directory not listable")
		}
		return false
	}

	if _, err := s.usage(full); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("directory mount issue")
		return false
	}

	s.logger.Debug().Str("path", path).Msg("directory accessible")
	return true
}

// DiskUsage returns capacity figures for the filesystem holding path. The
// zero value is returned when path is inaccessible.
func (s *Impl) DiskUsage(path string) models.DiskUsage {
	if !s.IsAccessible(path) {
		s.logger.Error().Str("path", path).Msg("cannot get disk usage, path not accessible")
		return models.DiskUsage{}
	}

	u, err := s.usage(expand(path))
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to get disk usage")
		return models.DiskUsage{}
	}

	s.logger.Debug().
		Str("path", path).
		Uint64("total", u.Total).
		Uint64("used", u.Used).
		Uint64("free", u.Free).
		Msg("disk usage")
	return u
}

// RecentFiles lists regular files in dir modified within the last days*24h.
// Subdirectories are scanned only when recursive is set. An inaccessible
// directory yields an empty list.
func (s *Impl) RecentFiles(dir string, days int, recursive bool) []models.FileEntry {
	full := expand(dir)
	files := []models.FileEntry{}

	if !s.IsAccessible(dir) {
		s.logger.Error().Str("dir", dir).Msg("cannot scan files, directory not accessible")
		return files
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	keep := func(path string, info fs.FileInfo) {
		if !info.Mode().IsRegular() || info.ModTime().Before(cutoff) {
			return
		}
		files = append(files, models.FileEntry{
			Path:    path,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	if recursive {
		err := afero.Walk(s.fs, full, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("cannot stat entry, skipping")
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			keep(path, info)
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).Str("dir", dir).Msg("failed to scan directory")
			return []models.FileEntry{}
		}
	} else {
		entries, err := afero.ReadDir(s.fs, full)
		if err != nil {
			s.logger.Error().Err(err).Str("dir", dir).Msg("failed to scan directory")
			return files
		}
		for _, info := range entries {
			keep(filepath.Join(full, info.Name()), info)
		}
	}

	s.logger.Debug().
		Str("dir", dir).
		Int("days", days).
		Int("count", len(files)).
		Msg("found recently modified files")
	return files
}

// CheckFreeSpace compares the free space of the filesystem holding path with
// minFree bytes.
func (s *Impl) CheckFreeSpace(path string, minFree int64) models.FreeSpaceResult {
	result := models.FreeSpaceResult{Path: path, Required: minFree}

	u := s.DiskUsage(path)
	if !u.Available() {
		result.Message = fmt.Sprintf("Cannot determine disk usage for %s", path)
		return result
	}
	result.Free = u.Free

	required := uint64(0)
	if minFree > 0 {
		required = uint64(minFree)
	}
	result.Sufficient = u.Free >= required

	freeStr := size.MustFormat(clampInt64(u.Free))
	requiredStr := size.MustFormat(minFree)
	if result.Sufficient {
		result.Message = fmt.Sprintf("Sufficient free space: %s available (required: %s)", freeStr, requiredStr)
		s.logger.Debug().Str("path", path).Msg(result.Message)
	} else {
		result.Message = fmt.Sprintf("Insufficient free space: %s available, %s required", freeStr, requiredStr)
		s.logger.Warn().Str("path", path).Msg(result.Message)
	}
	return result
}

// expand resolves a leading ~ to the home directory.
func expand(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
