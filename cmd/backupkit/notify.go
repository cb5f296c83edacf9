package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/services/email"
	"github.com/fgeck/backupkit/internal/services/pushover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	testEmail    bool
	testPushover bool
	testTo       []string
)

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send test notifications",
	Long: `Send a Pushover test notification and a test email using the
credentials from --pushover-env and --smtp-env.`,
	RunE: runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().BoolVar(&testEmail, "email", true, "send a test email")
	notifyTestCmd.Flags().BoolVar(&testPushover, "pushover", true, "send a Pushover test notification")
	notifyTestCmd.Flags().StringSliceVar(&testTo, "to", nil, "email recipients (defaults to TO_EMAIL)")
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	var errs []error

	if testPushover {
		if err := pushoverTest(ctx); err != nil {
			log.Error().Err(err).Msg("Pushover test failed")
			errs = append(errs, err)
		}
	}
	if testEmail {
		if err := emailTest(ctx); err != nil {
			log.Error().Err(err).Msg("email test failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func pushoverTest(ctx context.Context) error {
	cfg, err := pushover.LoadCredentials(pushoverEnvFile)
	if err != nil {
		return err
	}

	result, err := pushover.New(log.Logger).SendTest(ctx, cfg)
	if err != nil {
		return err
	}
	if result.Error != nil {
		return result.Error
	}

	log.Info().Msg("Pushover test notification sent")
	return nil
}

func emailTest(ctx context.Context) error {
	cfg, err := email.LoadSMTPConfig(smtpEnvFile)
	if err != nil {
		return err
	}

	msg := models.EmailMessage{
		To:      testTo,
		Subject: "backupkit test email",
		Body:    fmt.Sprintf("Test email from backupkit %s.\nSMTP server: %s:%d", Version, cfg.Server, cfg.Port),
	}
	result, err := email.New(log.Logger).Send(ctx, cfg, msg)
	if err != nil {
		return err
	}
	if result.Error != nil {
		return result.Error
	}

	log.Info().Strs("recipients", result.Recipients).Msg("test email sent")
	return nil
}
