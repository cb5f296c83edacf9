package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/services/uptimekuma"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	hbURL     string
	hbStatus  string
	hbMsg     string
	hbPing    int
	hbTimeout time.Duration
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Send a single Uptime Kuma push heartbeat",
	Long: `Send a single Uptime Kuma push heartbeat.

The push URL is taken from --url or from uptime_kuma_url in the config file.
Flags override status, msg and ping query parameters already present in the URL.`,
	RunE: sendHeartbeat,
}

func init() {
	heartbeatCmd.Flags().StringVar(&hbURL, "url", "", "push URL (defaults to uptime_kuma_url from the config)")
	heartbeatCmd.Flags().StringVar(&hbStatus, "status", "", "heartbeat status (up, down, pending)")
	heartbeatCmd.Flags().StringVar(&hbMsg, "msg", "", "heartbeat message")
	heartbeatCmd.Flags().IntVar(&hbPing, "ping", 0, "ping value in milliseconds")
	heartbeatCmd.Flags().DurationVar(&hbTimeout, "timeout", uptimekuma.DefaultTimeout, "request timeout")
}

func sendHeartbeat(cmd *cobra.Command, args []string) error {
	url := hbURL
	if url == "" && configFile != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		url = cfg.UptimeKumaURL
	}
	if url == "" {
		return fmt.Errorf("%w: use --url or set uptime_kuma_url", uptimekuma.ErrNoURL)
	}

	hb := models.Heartbeat{
		URL:     url,
		Status:  hbStatus,
		Msg:     hbMsg,
		Timeout: hbTimeout,
	}
	if cmd.Flags().Changed("ping") {
		hb.Ping = &hbPing
	}

	result, err := uptimekuma.New(log.Logger).Send(context.Background(), hb)
	if err != nil {
		return err
	}
	if result.Error != nil {
		return result.Error
	}
	if !result.Sent {
		return errors.New("heartbeat not sent")
	}

	log.Info().Int("status_code", result.StatusCode).Msg("heartbeat sent")
	return nil
}
