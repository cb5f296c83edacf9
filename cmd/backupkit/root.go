package main

import (
	"errors"
	"os"
	"strings"

	"github.com/fgeck/backupkit/internal/config"
	"github.com/fgeck/backupkit/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile      string
	verbose         bool
	quiet           bool
	jsonOutput      bool
	smtpEnvFile     string
	pushoverEnvFile string
)

var errConfigRequired = errors.New("config file is required (--config)")

var rootCmd = &cobra.Command{
	Use:   "backupkit",
	Short: "Backup monitoring toolkit for homelab servers",
	Long: `backupkit checks that backups are fresh, large enough and have room to grow:
  - Recent files and minimum total size per backup directory
  - Free space on the backup volumes
  - Email and Pushover reports
  - Uptime Kuma push heartbeats

Use as a one-shot command with an external scheduler (cron, systemd timer, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&smtpEnvFile, "smtp-env", config.DefaultEnvFile, "dotenv file with SMTP settings")
	rootCmd.PersistentFlags().StringVar(&pushoverEnvFile, "pushover-env", config.DefaultEnvFile, "dotenv file with Pushover credentials")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(notifyTestCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig loads and validates the file given by --config.
func loadConfig(cmd *cobra.Command) (*models.AppConfig, error) {
	if configFile == "" {
		log.Error().Msg("config file is required")
		_ = cmd.Help()
		return nil, errConfigRequired
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
