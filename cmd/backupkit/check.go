package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/backupkit/internal/logging"
	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/services/email"
	"github.com/fgeck/backupkit/internal/services/pushover"
	"github.com/fgeck/backupkit/internal/services/runner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	noEmail        bool
	noPushover     bool
	pushoverAlerts bool
	logDir         string
	logRotation    string
	logFormat      string
)

var errChecksFailed = errors.New("backup checks failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all configured backup checks",
	Long: `Run all configured backup checks:
1. Recent files within the configured number of days
2. Total size of the recent files against min_size
3. Free space on every backup volume against min_free_space
4. Email summary to to_email (if SMTP settings are available)
5. Pushover summary and alerts (if credentials are available)
6. Uptime Kuma heartbeat (if uptime_kuma_url is set)

Exits non-zero when any check fails.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&noEmail, "no-email", false, "do not send the summary email")
	checkCmd.Flags().BoolVar(&noPushover, "no-pushover", false, "do not send Pushover notifications")
	checkCmd.Flags().BoolVar(&pushoverAlerts, "pushover-alerts", false, "send one Pushover alert per failed backup")
	checkCmd.Flags().StringVar(&logDir, "log-dir", logging.DefaultDir, "log directory when log_file is not set")
	checkCmd.Flags().StringVar(&logRotation, "log-rotation", logging.DefaultRotation, "log rotation preset (weekly_4, daily_7, monthly_12)")
	checkCmd.Flags().StringVar(&logFormat, "log-format", logging.DefaultFormat, "log file format (default, detailed, simple, backup_monitor, json)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var console io.Writer = os.Stdout
	if quiet {
		console = nil
	}
	logs, err := logging.Setup(logging.Options{
		Dir:      logDir,
		File:     cfg.LogFile,
		Level:    cfg.LogLevel,
		Rotation: logRotation,
		Format:   logFormat,
		Console:  console,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to set up logging")
		return err
	}
	defer func() {
		if err := logs.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		}
	}()
	logger := logs.Logger

	logger.Info().
		Str("config", configFile).
		Int("backups", len(cfg.BackupCheckList)).
		Str("min_free_space", cfg.MinFreeSpace).
		Msg("configuration loaded")

	notify := runner.Notifications{PushoverAlerts: pushoverAlerts}
	if !noEmail {
		notify.SMTP = loadSMTP(logger)
	}
	if !noPushover {
		notify.Pushover = loadPushover(logger)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := runner.New(logger).Run(ctx, *cfg, notify)
	if err != nil {
		logger.Error().Err(err).Msg("backup check aborted")
		return err
	}

	if !report.OK() {
		logger.Error().
			Int("failed", report.Failed()).
			Strs("errors", report.Errors).
			Msg("backup checks failed")
		return errChecksFailed
	}

	logger.Info().Msg("all backup checks passed")
	return nil
}

// loadSMTP returns nil when no usable SMTP settings are available.
func loadSMTP(logger zerolog.Logger) *models.SMTPConfig {
	cfg, err := email.LoadSMTPConfig(smtpEnvFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", smtpEnvFile).Msg("email notifications disabled")
		return nil
	}
	return &cfg
}

// loadPushover returns nil when no usable Pushover credentials are available.
func loadPushover(logger zerolog.Logger) *models.PushoverConfig {
	cfg, err := pushover.LoadCredentials(pushoverEnvFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", pushoverEnvFile).Msg("Pushover notifications disabled")
		return nil
	}
	return &cfg
}
