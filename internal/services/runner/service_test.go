package runner

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/services/pushover"
	"github.com/fgeck/backupkit/internal/services/uptimekuma"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockFsService struct {
	accessibleFunc func(path string) bool
	usageFunc      func(path string) models.DiskUsage
	recentFunc     func(dir string, days int, recursive bool) []models.FileEntry
	freeSpaceFunc  func(path string, minFree int64) models.FreeSpaceResult
	accessCalls    int
	freeSpaceCalls []string
}

func (m *mockFsService) IsAccessible(path string) bool {
	m.accessCalls++
	if m.accessibleFunc != nil {
		return m.accessibleFunc(path)
	}
	return true
}

func (m *mockFsService) DiskUsage(path string) models.DiskUsage {
	if m.usageFunc != nil {
		return m.usageFunc(path)
	}
	return models.DiskUsage{}
}

func (m *mockFsService) RecentFiles(dir string, days int, recursive bool) []models.FileEntry {
	if m.recentFunc != nil {
		return m.recentFunc(dir, days, recursive)
	}
	return []models.FileEntry{}
}

func (m *mockFsService) CheckFreeSpace(path string, minFree int64) models.FreeSpaceResult {
	m.freeSpaceCalls = append(m.freeSpaceCalls, path)
	if m.freeSpaceFunc != nil {
		return m.freeSpaceFunc(path, minFree)
	}
	return models.FreeSpaceResult{Path: path, Sufficient: true, Required: minFree, Message: "Sufficient free space"}
}

type mockEmailService struct {
	summaryFunc func(ctx context.Context, cfg models.SMTPConfig, report models.BackupReport, to []string) (*models.EmailResult, error)
	called      bool
	report      models.BackupReport
	to          []string
}

func (m *mockEmailService) Send(_ context.Context, _ models.SMTPConfig, _ models.EmailMessage) (*models.EmailResult, error) {
	return &models.EmailResult{Sent: true}, nil
}

func (m *mockEmailService) SendBackupSummary(ctx context.Context, cfg models.SMTPConfig, report models.BackupReport, to []string) (*models.EmailResult, error) {
	m.called = true
	m.report = report
	m.to = to
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, cfg, report, to)
	}
	return &models.EmailResult{Sent: true, Recipients: to}, nil
}

type alertCall struct {
	name     string
	errMsg   string
	priority int
}

type mockPushoverService struct {
	summaryFunc func(ctx context.Context, cfg models.PushoverConfig, summary pushover.Summary, priority int) (*models.PushoverResult, error)
	summaries   []pushover.Summary
	priorities  []int
	alerts      []alertCall
}

func (m *mockPushoverService) Send(_ context.Context, _ models.PushoverConfig, _ models.PushoverMessage) (*models.PushoverResult, error) {
	return &models.PushoverResult{Sent: true}, nil
}

func (m *mockPushoverService) SendBackupAlert(_ context.Context, _ models.PushoverConfig, name, errMsg string, priority int) (*models.PushoverResult, error) {
	m.alerts = append(m.alerts, alertCall{name: name, errMsg: errMsg, priority: priority})
	return &models.PushoverResult{Sent: true}, nil
}

func (m *mockPushoverService) SendBackupSummary(ctx context.Context, cfg models.PushoverConfig, summary pushover.Summary, priority int) (*models.PushoverResult, error) {
	m.summaries = append(m.summaries, summary)
	m.priorities = append(m.priorities, priority)
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, cfg, summary, priority)
	}
	return &models.PushoverResult{Sent: true}, nil
}

func (m *mockPushoverService) SendTest(_ context.Context, _ models.PushoverConfig) (*models.PushoverResult, error) {
	return &models.PushoverResult{Sent: true}, nil
}

type mockKumaService struct {
	sendFunc   func(ctx context.Context, hb models.Heartbeat) (*models.HeartbeatResult, error)
	heartbeats []models.Heartbeat
	ctxErr     error
}

func (m *mockKumaService) Send(ctx context.Context, hb models.Heartbeat) (*models.HeartbeatResult, error) {
	m.heartbeats = append(m.heartbeats, hb)
	m.ctxErr = ctx.Err()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, hb)
	}
	return &models.HeartbeatResult{Sent: true, StatusCode: 200}, nil
}

// Helper functions

var testStart = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	t := testStart
	return func() time.Time {
		now := t
		t = t.Add(time.Second)
		return now
	}
}

func files(sizes ...int64) []models.FileEntry {
	out := make([]models.FileEntry, 0, len(sizes))
	for i, s := range sizes {
		out = append(out, models.FileEntry{
			Path:    "/backups/file" + string(rune('a'+i)),
			Name:    "file" + string(rune('a'+i)),
			Size:    s,
			ModTime: testStart.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	return out
}

func testConfig() models.AppConfig {
	return models.AppConfig{
		ToEmail:          []string{"ops@example.com"},
		PushoverPriority: 0,
		MinFreeSpace:     "10 GB",
		BackupCheckList: []models.BackupCheckConfig{
			{Name: "proxmox", BackupDir: "/backups/proxmox", Days: 1, MinSize: "1 KB"},
			{Name: "database", BackupDir: "/backups/db", Days: 7, MinSize: "1 MB"},
		},
	}
}

type fixture struct {
	fs       *mockFsService
	email    *mockEmailService
	pushover *mockPushoverService
	kuma     *mockKumaService
	runner   *Impl
}

func newFixture() *fixture {
	f := &fixture{
		fs: &mockFsService{
			recentFunc: func(dir string, _ int, _ bool) []models.FileEntry {
				if dir == "/backups/db" {
					return files(2<<20, 1<<20)
				}
				return files(4096)
			},
		},
		email:    &mockEmailService{},
		pushover: &mockPushoverService{},
		kuma:     &mockKumaService{},
	}
	f.runner = NewWithServices(testLogger(), f.fs, f.email, f.pushover, f.kuma, steppingClock(), "backup-host")
	return f
}

func allChannels() Notifications {
	return Notifications{
		SMTP:     &models.SMTPConfig{Server: "smtp.example.com", Port: 587, Token: "secret", FromEmail: "backup@example.com"},
		Pushover: &models.PushoverConfig{Token: "t", User: "u"},
	}
}

func TestRun_AllPass(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.UptimeKumaURL = "https://kuma.example.com/api/push/abc"

	report, err := f.runner.Run(context.Background(), cfg, allChannels())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.OK())
	assert.Equal(t, "backup-host", report.Host)
	assert.Equal(t, testStart, report.StartTime)
	assert.Positive(t, report.Duration)
	require.Len(t, report.Results, 2)

	proxmox := report.Results[0]
	assert.True(t, proxmox.Success)
	assert.Equal(t, 1, proxmox.FileCount)
	assert.Equal(t, int64(4096), proxmox.TotalSize)
	assert.Equal(t, int64(1024), proxmox.MinSize)
	assert.Contains(t, proxmox.AgeSummary, "1 file")

	db := report.Results[1]
	assert.True(t, db.Success)
	assert.Equal(t, 2, db.FileCount)
	assert.Equal(t, int64(3<<20), db.TotalSize)

	assert.Equal(t, []string{"/backups/proxmox", "/backups/db"}, f.fs.freeSpaceCalls)
	assert.Len(t, report.FreeSpace, 2)
	assert.Empty(t, report.Errors)

	assert.True(t, f.email.called)
	assert.Equal(t, []string{"ops@example.com"}, f.email.to)
	assert.Equal(t, report.Duration, f.email.report.Duration)

	require.Len(t, f.pushover.summaries, 1)
	assert.Equal(t, pushover.Summary{Total: 2, Success: 2, Failed: 0, Duration: report.Duration}, f.pushover.summaries[0])
	assert.Equal(t, []int{0}, f.pushover.priorities)
	assert.Empty(t, f.pushover.alerts)

	require.Len(t, f.kuma.heartbeats, 1)
	hb := f.kuma.heartbeats[0]
	assert.Equal(t, cfg.UptimeKumaURL, hb.URL)
	assert.Equal(t, uptimekuma.StatusUp, hb.Status)
	assert.Equal(t, "OK", hb.Msg)
	require.NotNil(t, hb.Ping)
	assert.Equal(t, int(report.Duration.Milliseconds()), *hb.Ping)
}

func TestRun_NoFilesFound(t *testing.T) {
	f := newFixture()
	f.fs.recentFunc = func(dir string, _ int, _ bool) []models.FileEntry {
		if dir == "/backups/db" {
			return []models.FileEntry{}
		}
		return files(4096)
	}

	report, err := f.runner.Run(context.Background(), testConfig(), Notifications{})
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Failed())
	db := report.Results[1]
	assert.False(t, db.Success)
	assert.Equal(t, "no files modified within 7 days in /backups/db", db.Error)
	assert.Equal(t, "No files found", db.AgeSummary)
	assert.Equal(t, []string{"database: no files modified within 7 days in /backups/db"}, report.Errors)
}

func TestRun_BelowMinimumSize(t *testing.T) {
	f := newFixture()
	f.fs.recentFunc = func(_ string, _ int, _ bool) []models.FileEntry {
		return files(512)
	}

	report, err := f.runner.Run(context.Background(), testConfig(), Notifications{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, "total size 512 B is below minimum 1.0 KB", report.Results[0].Error)
	assert.Equal(t, "total size 512 B is below minimum 1.0 MB", report.Results[1].Error)
}

func TestRun_InaccessibleDirectorySkipsFreeSpace(t *testing.T) {
	f := newFixture()
	f.fs.accessibleFunc = func(path string) bool { return path != "/backups/proxmox" }
	cfg := testConfig()
	cfg.BackupCheckList = append(cfg.BackupCheckList,
		models.BackupCheckConfig{Name: "proxmox-weekly", BackupDir: "/backups/proxmox", Days: 7, MinSize: "1 KB"})

	report, err := f.runner.Run(context.Background(), cfg, Notifications{})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "backup directory not accessible: /backups/proxmox", report.Results[0].Error)
	assert.Equal(t, "backup directory not accessible: /backups/proxmox", report.Results[2].Error)
	assert.True(t, report.Results[1].Success)
	assert.Equal(t, 2, f.fs.accessCalls)
	assert.Equal(t, []string{"/backups/db"}, f.fs.freeSpaceCalls)
	assert.Len(t, report.Errors, 2)
}

func TestRun_FreeSpaceCheckedOncePerDirectory(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.BackupCheckList = append(cfg.BackupCheckList,
		models.BackupCheckConfig{Name: "database-weekly", BackupDir: "/backups/db", Days: 7, MinSize: "1 MB"})

	_, err := f.runner.Run(context.Background(), cfg, Notifications{})
	require.NoError(t, err)

	assert.Equal(t, []string{"/backups/proxmox", "/backups/db"}, f.fs.freeSpaceCalls)
}

func TestRun_InsufficientFreeSpace(t *testing.T) {
	f := newFixture()
	var gotMin int64
	f.fs.freeSpaceFunc = func(path string, minFree int64) models.FreeSpaceResult {
		gotMin = minFree
		if path == "/backups/db" {
			return models.FreeSpaceResult{Path: path, Required: minFree, Message: "Insufficient free space: 2.0 GB available, 10.0 GB required"}
		}
		return models.FreeSpaceResult{Path: path, Sufficient: true, Required: minFree}
	}

	report, err := f.runner.Run(context.Background(), testConfig(), Notifications{})
	require.NoError(t, err)

	assert.Equal(t, int64(10<<30), gotMin)
	assert.Equal(t, 0, report.Failed())
	assert.False(t, report.OK())
	assert.Equal(t, []string{"/backups/db: Insufficient free space: 2.0 GB available, 10.0 GB required"}, report.Errors)
}

func TestRun_InsufficientFreeSpaceNotifiesFailure(t *testing.T) {
	f := newFixture()
	f.fs.freeSpaceFunc = func(path string, minFree int64) models.FreeSpaceResult {
		return models.FreeSpaceResult{Path: path, Required: minFree, Message: "Insufficient free space: 1.0 GB available, 10.0 GB required"}
	}
	cfg := testConfig()
	cfg.UptimeKumaURL = "https://kuma.example.com/api/push/abc"

	report, err := f.runner.Run(context.Background(), cfg, allChannels())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Failed())
	assert.False(t, report.OK())

	require.Len(t, f.pushover.summaries, 1)
	summary := f.pushover.summaries[0]
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Errors)
	assert.False(t, summary.OK())

	assert.False(t, f.email.report.OK())
	require.Len(t, f.kuma.heartbeats, 1)
	assert.Equal(t, uptimekuma.StatusDown, f.kuma.heartbeats[0].Status)
}

func TestRun_CancelledSummaryNotOK(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.Run(ctx, testConfig(), Notifications{Pushover: &models.PushoverConfig{Token: "t", User: "u"}})
	require.Error(t, err)

	require.Len(t, f.pushover.summaries, 1)
	assert.Equal(t, 1, f.pushover.summaries[0].Errors)
	assert.False(t, f.pushover.summaries[0].OK())
}

func TestRun_InvalidSizesRecorded(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.MinFreeSpace = "lots"
	cfg.BackupCheckList[0].MinSize = "huge"

	report, err := f.runner.Run(context.Background(), cfg, Notifications{})
	require.NoError(t, err)

	assert.Contains(t, report.Results[0].Error, "invalid min_size")
	assert.True(t, report.Results[1].Success)
	assert.Empty(t, f.fs.freeSpaceCalls)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[1], "invalid min_free_space")
}

func TestRun_FailureNotifications(t *testing.T) {
	f := newFixture()
	f.fs.accessibleFunc = func(path string) bool { return path != "/backups/db" }
	cfg := testConfig()
	cfg.PushoverPriority = -1
	cfg.UptimeKumaURL = "https://kuma.example.com/api/push/abc"
	notify := allChannels()
	notify.PushoverAlerts = true

	report, err := f.runner.Run(context.Background(), cfg, notify)
	require.NoError(t, err)

	require.Len(t, f.pushover.summaries, 1)
	assert.Equal(t, 1, f.pushover.summaries[0].Failed)
	assert.Equal(t, 1, f.pushover.summaries[0].Success)
	assert.Equal(t, []int{-1}, f.pushover.priorities)

	require.Len(t, f.pushover.alerts, 1)
	assert.Equal(t, alertCall{
		name:     "database",
		errMsg:   "backup directory not accessible: /backups/db",
		priority: pushover.PriorityHigh,
	}, f.pushover.alerts[0])

	require.Len(t, f.kuma.heartbeats, 1)
	assert.Equal(t, uptimekuma.StatusDown, f.kuma.heartbeats[0].Status)
	assert.Equal(t, "1 of 2 backup checks failed, 1 errors", f.kuma.heartbeats[0].Msg)

	assert.False(t, f.email.report.OK())
	assert.Equal(t, report.Errors, f.email.report.Errors)
}

func TestRun_ChannelsDisabled(t *testing.T) {
	f := newFixture()

	report, err := f.runner.Run(context.Background(), testConfig(), Notifications{})
	require.NoError(t, err)
	assert.True(t, report.OK())

	assert.False(t, f.email.called)
	assert.Empty(t, f.pushover.summaries)
	assert.Empty(t, f.kuma.heartbeats)
}

func TestRun_NotificationFailuresDoNotFailRun(t *testing.T) {
	f := newFixture()
	f.email.summaryFunc = func(_ context.Context, _ models.SMTPConfig, _ models.BackupReport, _ []string) (*models.EmailResult, error) {
		return &models.EmailResult{Error: errors.New("smtp down")}, nil
	}
	f.pushover.summaryFunc = func(_ context.Context, _ models.PushoverConfig, _ pushover.Summary, _ int) (*models.PushoverResult, error) {
		return nil, errors.New("network unreachable")
	}
	f.kuma.sendFunc = func(_ context.Context, _ models.Heartbeat) (*models.HeartbeatResult, error) {
		return &models.HeartbeatResult{Error: errors.New("heartbeat failed: HTTP 404")}, nil
	}
	cfg := testConfig()
	cfg.UptimeKumaURL = "https://kuma.example.com/api/push/abc"

	report, err := f.runner.Run(context.Background(), cfg, allChannels())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.True(t, f.email.called)
	assert.Len(t, f.kuma.heartbeats, 1)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.UptimeKumaURL = "https://kuma.example.com/api/push/abc"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.runner.Run(ctx, cfg, Notifications{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, report)
	assert.Empty(t, report.Results)
	assert.Equal(t, []string{"check run cancelled"}, report.Errors)

	// The heartbeat still goes out, on a context detached from the cancelled run.
	require.Len(t, f.kuma.heartbeats, 1)
	assert.Equal(t, uptimekuma.StatusDown, f.kuma.heartbeats[0].Status)
	assert.NoError(t, f.kuma.ctxErr)
}

func TestRun_EmptyBackupList(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.BackupCheckList = nil

	report, err := f.runner.Run(context.Background(), cfg, Notifications{})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Empty(t, report.Results)
	assert.Empty(t, f.fs.freeSpaceCalls)
}

func TestNew(t *testing.T) {
	r := New(testLogger())
	require.NotNil(t, r)
	assert.NotNil(t, r.fsSvc)
	assert.NotNil(t, r.emailSvc)
	assert.NotNil(t, r.pushoverSvc)
	assert.NotNil(t, r.kumaSvc)
	assert.NotEmpty(t, r.host)
}
