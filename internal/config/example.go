package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fgeck/backupkit/internal/models"
	"gopkg.in/yaml.v3"
)

// exampleDocument mirrors the YAML layout so the written file keeps key order.
type exampleDocument struct {
	ToEmail          []string        `yaml:"to_email"`
	PushoverPriority int             `yaml:"pushover_priority"`
	LogLevel         string          `yaml:"log_level"`
	LogFile          string          `yaml:"log_file"`
	MinFreeSpace     string          `yaml:"min_free_space"`
	UptimeKumaURL    string          `yaml:"uptime_kuma_url,omitempty"`
	BackupCheckList  []exampleBackup `yaml:"backup_check_list"`
}

type exampleBackup struct {
	Name      string `yaml:"name"`
	BackupDir string `yaml:"backup_dir"`
	Days      int    `yaml:"days"`
	MinSize   string `yaml:"min_size"`
}

// ExampleConfig returns a complete, valid sample configuration.
func ExampleConfig() models.AppConfig {
	return models.AppConfig{
		ToEmail: []string{
			"admin@example.com",
			"backup-admin@example.com",
		},
		PushoverPriority: -1,
		LogLevel:         "INFO",
		LogFile:          "log/backup_monitor.log",
		MinFreeSpace:     "100 GB",
		UptimeKumaURL:    "http://localhost:3001/api/push/TOKEN",
		BackupCheckList: []models.BackupCheckConfig{
			{Name: "proxmox", BackupDir: "/mnt/backup_usb1/vm-containers/dump", Days: 8, MinSize: "10 GB"},
			{Name: "homeassistant", BackupDir: "/mnt/backup_usb1/homeassistant", Days: 1, MinSize: "30 GB"},
			{Name: "proxmox-config", BackupDir: "/mnt/backup_usb1/proxmox-config/daily", Days: 1, MinSize: "10 KB"},
		},
	}
}

// MarshalYAML renders cfg in the configuration file layout.
func MarshalYAML(cfg models.AppConfig) ([]byte, error) {
	doc := exampleDocument{
		ToEmail:          cfg.ToEmail,
		PushoverPriority: cfg.PushoverPriority,
		LogLevel:         cfg.LogLevel,
		LogFile:          cfg.LogFile,
		MinFreeSpace:     cfg.MinFreeSpace,
		UptimeKumaURL:    cfg.UptimeKumaURL,
	}
	for _, b := range cfg.BackupCheckList {
		doc.BackupCheckList = append(doc.BackupCheckList, exampleBackup(b))
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return out, nil
}

// SaveExample writes ExampleConfig to path, creating parent directories.
func SaveExample(path string) error {
	path = ExpandPath(path)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	out, err := MarshalYAML(ExampleConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, out, 0o644); err != nil { //nolint:gosec // config file is not secret
		return fmt.Errorf("writing example config: %w", err)
	}
	return nil
}
