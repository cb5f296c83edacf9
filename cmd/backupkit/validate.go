package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/backupkit/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without running any checks.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printSummary(cmd, cfg)
	return nil
}

func printSummary(cmd *cobra.Command, cfg *models.AppConfig) {
	out := cmd.OutOrStdout()
	minFree, _ := cfg.MinFreeSpaceBytes()

	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  Recipients: %s\n", strings.Join(cfg.ToEmail, ", "))
	fmt.Fprintf(out, "  Pushover priority: %d\n", cfg.PushoverPriority)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "  Log file: %s\n", cfg.LogFile)
	}
	fmt.Fprintf(out, "  Min free space: %s (%s bytes)\n", cfg.MinFreeSpace, humanize.Comma(minFree))
	fmt.Fprintf(out, "  Uptime Kuma: %v\n", cfg.UptimeKumaURL != "")

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Backups (%d):\n", len(cfg.BackupCheckList))
	for _, b := range cfg.BackupCheckList {
		minSize, _ := b.MinSizeBytes()
		fmt.Fprintf(out, "  %s\n", b.Name)
		fmt.Fprintf(out, "    Directory: %s\n", b.BackupDir)
		fmt.Fprintf(out, "    Max age: %d day(s)\n", b.Days)
		fmt.Fprintf(out, "    Min size: %s (%s bytes)\n", b.MinSize, humanize.Comma(minSize))
	}
}
