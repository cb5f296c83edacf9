// Package runner orchestrates a backup check run.
package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/services/email"
	"github.com/fgeck/backupkit/internal/services/fsprobe"
	"github.com/fgeck/backupkit/internal/services/pushover"
	"github.com/fgeck/backupkit/internal/services/uptimekuma"
	"github.com/fgeck/backupkit/internal/size"
	"github.com/rs/zerolog"
)

// notifyTimeout bounds all notifications sent at the end of a run.
const notifyTimeout = 2 * time.Minute

// Notifications selects the channels a run reports to. A nil config disables
// that channel; the Uptime Kuma heartbeat is driven by the app config.
type Notifications struct {
	SMTP           *models.SMTPConfig
	Pushover       *models.PushoverConfig
	PushoverAlerts bool // one alert per failed backup in addition to the summary
}

// Service defines the interface for the backup check runner.
type Service interface {
	Run(ctx context.Context, cfg models.AppConfig, notify Notifications) (*models.BackupReport, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	fsSvc       fsprobe.Service
	emailSvc    email.Service
	pushoverSvc pushover.Service
	kumaSvc     uptimekuma.Service
	logger      zerolog.Logger
	now         func() time.Time
	host        string
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	host, err := os.Hostname()
	if err != nil {
		host = "Unknown"
	}
	return &Impl{
		fsSvc:       fsprobe.New(logger),
		emailSvc:    email.New(logger),
		pushoverSvc: pushover.New(logger),
		kumaSvc:     uptimekuma.New(logger),
		logger:      logger,
		now:         time.Now,
		host:        host,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	fsSvc fsprobe.Service,
	emailSvc email.Service,
	pushoverSvc pushover.Service,
	kumaSvc uptimekuma.Service,
	now func() time.Time,
	host string,
) *Impl {
	return &Impl{
		fsSvc:       fsSvc,
		emailSvc:    emailSvc,
		pushoverSvc: pushoverSvc,
		kumaSvc:     kumaSvc,
		logger:      logger,
		now:         now,
		host:        host,
	}
}

// Run checks every configured backup, then the free space of each distinct
// backup directory, and reports the outcome to the configured channels.
// Check failures are recorded in the report; the returned error is only set
// when ctx was cancelled before all checks ran.
func (s *Impl) Run(ctx context.Context, cfg models.AppConfig, notify Notifications) (*models.BackupReport, error) {
	report := &models.BackupReport{
		StartTime: s.now(),
		Host:      s.host,
	}

	s.logger.Info().
		Int("backups", len(cfg.BackupCheckList)).
		Str("host", s.host).
		Msg("starting backup check run")

	defer func() {
		report.Duration = s.now().Sub(report.StartTime)
		s.sendNotifications(ctx, cfg, notify, report)
	}()

	inaccessible := make(map[string]bool)
	for _, b := range cfg.BackupCheckList {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, "check run cancelled")
			return report, fmt.Errorf("backup check cancelled: %w", err)
		}

		res := s.checkBackup(b, inaccessible)
		report.Results = append(report.Results, res)
		if !res.Success {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", res.Name, res.Error))
		}
	}

	s.checkFreeSpace(ctx, cfg, inaccessible, report)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("backup check cancelled: %w", err)
	}

	s.logger.Info().
		Int("checked", len(report.Results)).
		Int("failed", report.Failed()).
		Int("errors", len(report.Errors)).
		Dur("duration", s.now().Sub(report.StartTime)).
		Msg("backup check run completed")

	return report, nil
}

// checkBackup records unreachable directories in inaccessible so the free
// space pass can skip them.
func (s *Impl) checkBackup(b models.BackupCheckConfig, inaccessible map[string]bool) models.BackupCheckResult {
	res := models.BackupCheckResult{
		Name:      b.Name,
		BackupDir: b.BackupDir,
	}

	minSize, err := b.MinSizeBytes()
	if err != nil {
		res.Error = fmt.Sprintf("invalid min_size: %v", err)
		return res
	}
	res.MinSize = minSize

	if inaccessible[b.BackupDir] || !s.fsSvc.IsAccessible(b.BackupDir) {
		inaccessible[b.BackupDir] = true
		res.Error = fmt.Sprintf("backup directory not accessible: %s", b.BackupDir)
		s.logger.Error().Str("backup", b.Name).Str("dir", b.BackupDir).Msg("backup directory not accessible")
		return res
	}

	files := s.fsSvc.RecentFiles(b.BackupDir, b.Days, false)
	res.FileCount = len(files)
	res.TotalSize = fsprobe.TotalSize(files)
	res.AgeSummary = fsprobe.FileAgeSummary(files, s.now())

	if len(files) == 0 {
		res.Error = fmt.Sprintf("no files modified within %d days in %s", b.Days, b.BackupDir)
		s.logger.Error().Str("backup", b.Name).Int("days", b.Days).Msg("no recent backup files")
		return res
	}

	if res.TotalSize < minSize {
		res.Error = fmt.Sprintf("total size %s is below minimum %s", size.MustFormat(res.TotalSize), size.MustFormat(minSize))
		s.logger.Error().
			Str("backup", b.Name).
			Int64("total_size", res.TotalSize).
			Int64("min_size", minSize).
			Msg("backup too small")
		return res
	}

	res.Success = true
	s.logger.Info().
		Str("backup", b.Name).
		Int("files", res.FileCount).
		Str("size", size.MustFormat(res.TotalSize)).
		Str("age", res.AgeSummary).
		Msg("backup check passed")

	return res
}

func (s *Impl) checkFreeSpace(ctx context.Context, cfg models.AppConfig, skip map[string]bool, report *models.BackupReport) {
	minFree, err := cfg.MinFreeSpaceBytes()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("invalid min_free_space: %v", err))
		return
	}

	seen := make(map[string]bool)
	for _, b := range cfg.BackupCheckList {
		if ctx.Err() != nil {
			return
		}
		if seen[b.BackupDir] || skip[b.BackupDir] {
			continue
		}
		seen[b.BackupDir] = true

		res := s.fsSvc.CheckFreeSpace(b.BackupDir, minFree)
		report.FreeSpace = append(report.FreeSpace, res)
		if !res.Sufficient {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", b.BackupDir, res.Message))
		}
	}
}

func (s *Impl) sendNotifications(ctx context.Context, cfg models.AppConfig, notify Notifications, report *models.BackupReport) {
	// Failures must still be reported after an interrupt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if notify.SMTP != nil {
		s.sendEmail(ctx, cfg, *notify.SMTP, report)
	}
	if notify.Pushover != nil {
		s.sendPushover(ctx, cfg, *notify.Pushover, notify.PushoverAlerts, report)
	}
	if cfg.UptimeKumaURL != "" {
		s.sendHeartbeat(ctx, cfg, report)
	}
}

func (s *Impl) sendEmail(ctx context.Context, cfg models.AppConfig, smtp models.SMTPConfig, report *models.BackupReport) {
	result, err := s.emailSvc.SendBackupSummary(ctx, smtp, *report, cfg.ToEmail)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send summary email")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send summary email")
		return
	}
	s.logger.Info().Strs("recipients", result.Recipients).Msg("summary email sent")
}

func (s *Impl) sendPushover(ctx context.Context, cfg models.AppConfig, po models.PushoverConfig, alerts bool, report *models.BackupReport) {
	failed := report.Failed()
	summary := pushover.Summary{
		Total:    len(report.Results),
		Success:  len(report.Results) - failed,
		Failed:   failed,
		Errors:   len(report.Errors),
		Duration: report.Duration,
	}

	result, err := s.pushoverSvc.SendBackupSummary(ctx, po, summary, cfg.PushoverPriority)
	switch {
	case err != nil:
		s.logger.Error().Err(err).Msg("failed to send Pushover summary")
	case result.Error != nil:
		s.logger.Error().Err(result.Error).Msg("failed to send Pushover summary")
	default:
		s.logger.Info().Msg("Pushover summary sent")
	}

	if !alerts {
		return
	}
	for _, r := range report.Results {
		if r.Success {
			continue
		}
		result, err := s.pushoverSvc.SendBackupAlert(ctx, po, r.Name, r.Error, pushover.PriorityHigh)
		if err != nil {
			s.logger.Error().Err(err).Str("backup", r.Name).Msg("failed to send Pushover alert")
			continue
		}
		if result.Error != nil {
			s.logger.Error().Err(result.Error).Str("backup", r.Name).Msg("failed to send Pushover alert")
		}
	}
}

func (s *Impl) sendHeartbeat(ctx context.Context, cfg models.AppConfig, report *models.BackupReport) {
	hb := models.Heartbeat{
		URL:    cfg.UptimeKumaURL,
		Status: uptimekuma.StatusUp,
		Msg:    "OK",
	}
	if !report.OK() {
		hb.Status = uptimekuma.StatusDown
		hb.Msg = fmt.Sprintf("%d of %d backup checks failed, %d errors",
			report.Failed(), len(report.Results), len(report.Errors))
	}
	ping := int(report.Duration.Milliseconds())
	hb.Ping = &ping

	result, err := s.kumaSvc.Send(ctx, hb)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to send Uptime Kuma heartbeat")
		return
	}
	if result.Error != nil {
		s.logger.Warn().Err(result.Error).Msg("failed to send Uptime Kuma heartbeat")
		return
	}
	s.logger.Info().Str("status", hb.Status).Msg("Uptime Kuma heartbeat sent")
}
