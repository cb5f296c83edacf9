package fsprobe

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/size"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func fixedUsage(u models.DiskUsage) UsageFunc {
	return func(string) (models.DiskUsage, error) {
		return u, nil
	}
}

func failingUsage(string) (models.DiskUsage, error) {
	return models.DiskUsage{}, errors.New("statfs: input/output error")
}

func writeFile(t *testing.T, fsys afero.Fs, path string, n int, age time.Duration) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, make([]byte, n), 0o644))
	mtime := testNow.Add(-age)
	require.NoError(t, fsys.Chtimes(path, mtime, mtime))
}

func newTestProbe(fsys afero.Fs, usage UsageFunc) *Impl {
	return NewWithFs(testLogger(), fsys, usage, func() time.Time { return testNow })
}

func TestIsAccessible(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/mnt/backup", 0o755))
	writeFile(t, fsys, "/mnt/file.tar", 10, time.Hour)

	svc := newTestProbe(fsys, fixedUsage(models.DiskUsage{Total: 100, Used: 40, Free: 60}))

	assert.True(t, svc.IsAccessible("/mnt/backup"))
	assert.True(t, svc.IsAccessible("/mnt/backup/"))
	assert.False(t, svc.IsAccessible("/mnt/missing"))
	assert.False(t, svc.IsAccessible("/mnt/file.tar"))
}

func TestIsAccessible_MountIssue(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/mnt/backup", 0o755))

	svc := newTestProbe(fsys, failingUsage)

	assert.False(t, svc.IsAccessible("/mnt/backup"))
}

func TestDiskUsage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/mnt/backup", 0o755))

	want := models.DiskUsage{Total: 1000, Used: 600, Free: 400}
	svc := newTestProbe(fsys, fixedUsage(want))

	assert.Equal(t, want, svc.DiskUsage("/mnt/backup"))
	assert.Equal(t, models.DiskUsage{}, svc.DiskUsage("/mnt/missing"))
	assert.False(t, svc.DiskUsage("/mnt/missing").Available())
}

func TestRecentFiles_TopLevel(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/backup/new.tar.zst", 2048, 2*time.Hour)
	writeFile(t, fsys, "/backup/yesterday.tar.zst", 1024, 30*time.Hour)
	writeFile(t, fsys, "/backup/old.tar.zst", 4096, 10*24*time.Hour)
	writeFile(t, fsys, "/backup/nested/inner.tar.zst", 512, time.Hour)

	svc := newTestProbe(fsys, fixedUsage(models.DiskUsage{Total: 1, Free: 1}))

	files := svc.RecentFiles("/backup", 2, false)

	require.Len(t, files, 2)
	names := []string{files[0].Name, files[1].Name}
	assert.ElementsMatch(t, []string{"new.tar.zst", "yesterday.tar.zst"}, names)
	assert.Equal(t, int64(3072), TotalSize(files))
	for _, f := range files {
		assert.Equal(t, filepath.Join("/backup", f.Name), f.Path)
	}
}

func TestRecentFiles_Recursive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/backup/new.tar.zst", 2048, 2*time.Hour)
	writeFile(t, fsys, "/backup/old.tar.zst", 4096, 10*24*time.Hour)
	writeFile(t, fsys, "/backup/daily/a.tar", 100, time.Hour)
	writeFile(t, fsys, "/backup/daily/deep/b.tar", 200, 3*time.Hour)

	svc := newTestProbe(fsys, fixedUsage(models.DiskUsage{Total: 1, Free: 1}))

	files := svc.RecentFiles("/backup", 1, true)

	require.Len(t, files, 3)
	assert.Equal(t, int64(2348), TotalSize(files))

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "/backup/daily/deep/b.tar")
}

func TestRecentFiles_CutoffIsInclusive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/backup/edge.tar", 1, 24*time.Hour)

	svc := newTestProbe(fsys, fixedUsage(models.DiskUsage{Total: 1, Free: 1}))

	assert.Len(t, svc.RecentFiles("/backup", 1, false), 1)
}

func TestRecentFiles_Inaccessible(t *testing.T) {
	svc := newTestProbe(afero.NewMemMapFs(), fixedUsage(models.DiskUsage{Total: 1, Free: 1}))

	files := svc.RecentFiles("/nope", 7, true)

	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestCheckFreeSpace(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/backup", 0o755))

	svc := newTestProbe(fsys, fixedUsage(models.DiskUsage{
		Total: uint64(500 * size.GB),
		Used:  uint64(350 * size.GB),
		Free:  uint64(150 * size.GB),
	}))

	t.Run("sufficient", func(t *testing.T) {
		res := svc.CheckFreeSpace("/backup", 100*size.GB)

		assert.True(t, res.Sufficient)
		assert.Equal(t, uint64(150*size.GB), res.Free)
		assert.Equal(t, "Sufficient free space: 150.0 GB available (required: 100.0 GB)", res.Message)
	})

	t.Run("insufficient", func(t *testing.T) {
		res := svc.CheckFreeSpace("/backup", 200*size.GB)

		assert.False(t, res.Sufficient)
		assert.Equal(t, "Insufficient free space: 150.0 GB available, 200.0 GB required", res.Message)
	})

	t.Run("exact", func(t *testing.T) {
		assert.True(t, svc.CheckFreeSpace("/backup", 150*size.GB).Sufficient)
	})

	t.Run("inaccessible", func(t *testing.T) {
		res := svc.CheckFreeSpace("/elsewhere", size.KB)

		assert.False(t, res.Sufficient)
		assert.Equal(t, "Cannot determine disk usage for /elsewhere", res.Message)
	})
}

func TestFormatDiskUsage(t *testing.T) {
	u := models.DiskUsage{Total: 1_000_000_000, Used: 600_000_000, Free: 400_000_000}

	assert.Equal(t, "953.7 MB total, 572.2 MB used (60.0%), 381.5 MB free", FormatDiskUsage(u))
	assert.Equal(t, "Disk usage unavailable", FormatDiskUsage(models.DiskUsage{}))
}

func TestFileAgeSummary(t *testing.T) {
	at := func(age time.Duration) models.FileEntry {
		return models.FileEntry{ModTime: testNow.Add(-age)}
	}

	tests := []struct {
		name  string
		files []models.FileEntry
		want  string
	}{
		{"empty", nil, "No files found"},
		{"single minutes", []models.FileEntry{at(30 * time.Minute)}, "1 file: modified 30.0 minutes ago"},
		{"single hours", []models.FileEntry{at(90 * time.Minute)}, "1 file: modified 1.5 hours ago"},
		{
			"many",
			[]models.FileEntry{at(60 * time.Hour), at(72 * time.Minute), at(26 * time.Hour)},
			"3 files: newest 1.2 hours ago, oldest 2.5 days ago",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileAgeSummary(tt.files, testNow))
		})
	}
}

func TestTotalSize_Empty(t *testing.T) {
	assert.Zero(t, TotalSize(nil))
}
