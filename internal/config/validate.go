package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/size"
)

// Log levels accepted in log_level.
var LogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// Pushover priority bounds.
const (
	MinPushoverPriority = -2
	MaxPushoverPriority = 2
)

var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	backupNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Validate performs validation on an in-memory configuration. All failures
// are collected into a single *ValidationError.
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	c := newCollector()
	validate(c, cfg)
	return c.err()
}

// ValidEmail reports whether s looks like local-part@domain.tld.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && emailPattern.MatchString(s)
}

// ValidPriority reports whether p is an accepted Pushover priority.
func ValidPriority(p int) bool {
	return p >= MinPushoverPriority && p <= MaxPushoverPriority
}

// ValidLogLevel reports whether s names one of LogLevels, ignoring case.
func ValidLogLevel(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, l := range LogLevels {
		if s == l {
			return true
		}
	}
	return false
}

func validate(c *collector, cfg *models.AppConfig) {
	for i, email := range cfg.ToEmail {
		path := fmt.Sprintf("to_email[%d]", i)
		if !ValidEmail(email) {
			c.add(path, ErrInvalidEmail, "invalid email format: %q", email)
		}
	}

	if !ValidPriority(cfg.PushoverPriority) {
		c.add("pushover_priority", ErrOutOfRange,
			"must be between %d and %d, got %d", MinPushoverPriority, MaxPushoverPriority, cfg.PushoverPriority)
	}

	if !ValidLogLevel(cfg.LogLevel) {
		c.add("log_level", ErrInvalidLogLevel,
			"invalid log level %q, must be one of: %s", cfg.LogLevel, strings.Join(LogLevels, ", "))
	}

	if _, err := size.Parse(cfg.MinFreeSpace); err != nil {
		c.add("min_free_space", err, "%v", err)
	}

	if cfg.UptimeKumaURL != "" {
		if err := validateURL(cfg.UptimeKumaURL); err != nil {
			c.add("uptime_kuma_url", ErrInvalidURL, "%v", err)
		}
	}

	firstUse := make(map[string]int)
	for i, b := range cfg.BackupCheckList {
		// Entries that were not mappings carry no fields to check.
		if c.failed(fmt.Sprintf("backup_check_list[%d]", i)) {
			continue
		}
		validateBackup(c, i, b)

		if b.Name == "" || c.failed(entryPath(i, "name")) {
			continue
		}
		if prev, dup := firstUse[b.Name]; dup {
			c.add(entryPath(i, "name"), ErrDuplicateBackupName,
				"duplicate backup name %q (already used by backup_check_list[%d])", b.Name, prev)
			continue
		}
		firstUse[b.Name] = i
	}
}

func validateBackup(c *collector, i int, b models.BackupCheckConfig) {
	label := entryLabel(i, b.Name)

	switch {
	case strings.TrimSpace(b.Name) == "":
		c.add(entryPath(i, "name"), ErrRequired, "%s: backup name cannot be empty", label)
	case !backupNamePattern.MatchString(b.Name):
		c.add(entryPath(i, "name"), ErrInvalidName,
			"%s: backup name must contain only alphanumeric characters, hyphens, and underscores", label)
	}

	if strings.TrimSpace(b.BackupDir) == "" {
		c.add(entryPath(i, "backup_dir"), ErrRequired, "%s: backup directory path cannot be empty", label)
	}

	if b.Days < 1 {
		c.add(entryPath(i, "days"), ErrOutOfRange, "%s: days must be a positive integer, got %d", label, b.Days)
	}

	if _, err := size.Parse(b.MinSize); err != nil {
		c.add(entryPath(i, "min_size"), err, "%s: %v", label, err)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

func entryPath(i int, field string) string {
	return fmt.Sprintf("backup_check_list[%d].%s", i, field)
}

func entryLabel(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("backup #%d", i)
	}
	return fmt.Sprintf("backup %q", name)
}
