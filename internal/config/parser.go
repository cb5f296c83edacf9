// Package config provides configuration file parsing and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a key is absent.
const (
	DefaultPushoverPriority = -1
	DefaultLogLevel         = "INFO"
	DefaultMinFreeSpace     = "100 GB"
	DefaultMinSize          = "1 KB"
)

var topLevelKeys = map[string]bool{
	"to_email":          true,
	"pushover_priority": true,
	"log_level":         true,
	"log_file":          true,
	"min_free_space":    true,
	"uptime_kuma_url":   true,
	"backup_check_list": true,
}

var backupKeys = map[string]bool{
	"name":       true,
	"backup_dir": true,
	"days":       true,
	"min_size":   true,
}

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper

	// keys holds the top-level keys as written in the document. viper
	// lowercases keys, so unknown-key detection works on these instead.
	keys []string
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path. A leading ~ is expanded.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	path = ExpandPath(path)
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, &ParseError{Source: path, Err: err}
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if p.keys, err = documentKeys(data); err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}

	return p.parse()
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, &ParseError{Source: "<reader>", Err: err}
	}
	keys, err := documentKeys([]byte(content))
	if err != nil {
		return nil, &ParseError{Source: "<reader>", Err: err}
	}
	p.keys = keys

	return p.parse()
}

func (p *Parser) parse() (*models.AppConfig, error) {
	c := newCollector()
	cfg := &models.AppConfig{
		PushoverPriority: DefaultPushoverPriority,
		LogLevel:         DefaultLogLevel,
		MinFreeSpace:     DefaultMinFreeSpace,
	}

	p.checkUnknownKeys(c)

	if raw := p.v.Get("to_email"); raw != nil {
		items, err := cast.ToSliceE(raw)
		if err != nil {
			c.add("to_email", ErrInvalidType, "must be a list of email addresses")
		}
		for i, item := range items {
			email, err := cast.ToStringE(item)
			if err != nil {
				c.add(fmt.Sprintf("to_email[%d]", i), ErrInvalidType, "email must be a string, got %T", item)
				continue
			}
			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}
			cfg.ToEmail = append(cfg.ToEmail, email)
		}
	}

	if raw := p.v.Get("pushover_priority"); raw != nil {
		n, err := toInt(raw)
		if err != nil {
			c.add("pushover_priority", ErrInvalidType, "%v", err)
		} else {
			cfg.PushoverPriority = n
		}
	}

	if raw := p.v.Get("log_level"); raw != nil {
		s, err := toString(raw)
		if err != nil {
			c.add("log_level", ErrInvalidType, "%v", err)
		} else {
			cfg.LogLevel = strings.ToUpper(strings.TrimSpace(s))
		}
	}

	if raw := p.v.Get("log_file"); raw != nil {
		s, err := toString(raw)
		if err != nil {
			c.add("log_file", ErrInvalidType, "%v", err)
		} else {
			cfg.LogFile = ExpandPath(strings.TrimSpace(s))
		}
	}

	if raw := p.v.Get("min_free_space"); raw != nil {
		s, err := toString(raw)
		if err != nil {
			c.add("min_free_space", ErrInvalidType, "%v", err)
		} else {
			cfg.MinFreeSpace = strings.TrimSpace(s)
		}
	}

	if raw := p.v.Get("uptime_kuma_url"); raw != nil {
		s, err := toString(raw)
		if err != nil {
			c.add("uptime_kuma_url", ErrInvalidType, "%v", err)
		} else {
			cfg.UptimeKumaURL = os.ExpandEnv(strings.TrimSpace(s))
		}
	}

	if raw := p.v.Get("backup_check_list"); raw != nil {
		items, err := cast.ToSliceE(raw)
		if err != nil {
			c.add("backup_check_list", ErrInvalidType, "must be a list of backup checks")
		}
		for i, item := range items {
			cfg.BackupCheckList = append(cfg.BackupCheckList, parseBackup(c, i, item))
		}
	}

	validate(c, cfg)

	if err := c.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// documentKeys returns the top-level mapping keys of a YAML document with
// their original spelling.
func documentKeys(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}

	root := doc.Content[0]
	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys, nil
}

// checkUnknownKeys matches keys case-sensitively.
func (p *Parser) checkUnknownKeys(c *collector) {
	seen := make(map[string]bool)
	for _, key := range p.keys {
		if !topLevelKeys[key] {
			seen[key] = true
		}
	}

	unknown := make([]string, 0, len(seen))
	for k := range seen {
		unknown = append(unknown, k)
	}
	sort.Strings(unknown)

	for _, k := range unknown {
		c.add(k, ErrUnknownField, "unknown configuration key")
	}
}

func parseBackup(c *collector, i int, item any) models.BackupCheckConfig {
	b := models.BackupCheckConfig{MinSize: DefaultMinSize}

	fields, err := cast.ToStringMapE(item)
	if err != nil {
		c.add(fmt.Sprintf("backup_check_list[%d]", i), ErrInvalidType, "backup check must be a mapping, got %T", item)
		return b
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !backupKeys[k] {
			c.add(entryPath(i, k), ErrUnknownField, "unknown backup check key")
		}
	}

	if v, ok := fields["name"]; ok && v != nil {
		if s, err := toString(v); err != nil {
			c.add(entryPath(i, "name"), ErrInvalidType, "%v", err)
		} else {
			b.Name = strings.TrimSpace(s)
		}
	}
	label := entryLabel(i, b.Name)

	if v, ok := fields["backup_dir"]; ok && v != nil {
		if s, err := toString(v); err != nil {
			c.add(entryPath(i, "backup_dir"), ErrInvalidType, "%s: %v", label, err)
		} else {
			b.BackupDir = ExpandPath(strings.TrimSpace(s))
		}
	}

	if v, ok := fields["days"]; ok && v != nil {
		if n, err := toInt(v); err != nil {
			c.add(entryPath(i, "days"), ErrInvalidType, "%s: %v", label, err)
		} else {
			b.Days = n
		}
	} else {
		c.add(entryPath(i, "days"), ErrRequired, "%s: days is required", label)
	}

	if v, ok := fields["min_size"]; ok && v != nil {
		if s, err := toString(v); err != nil {
			c.add(entryPath(i, "min_size"), ErrInvalidType, "%s: %v", label, err)
		} else {
			b.MinSize = strings.TrimSpace(s)
		}
	}

	return b
}

// toInt accepts integers, integral floats and decimal strings. Booleans,
// fractional numbers and values outside the int range are rejected instead of
// being coerced.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case bool:
		return 0, fmt.Errorf("expected an integer, got boolean %v", n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, strconv.IntSize)
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("integer out of range: %s", strings.TrimSpace(n))
		}
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n)
		}
		return int(i), nil
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("integer out of range: %d", n)
		}
		return int(n), nil
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, fmt.Errorf("integer out of range: %d", n)
		}
		return int(n), nil
	}

	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", fmt.Sprint(v))
	}
	return i, nil
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	if f < float64(math.MinInt) || f >= float64(math.MaxInt) {
		return 0, fmt.Errorf("integer out of range: %v", f)
	}
	return int(f), nil
}

// toString accepts scalars only; lists and mappings are rejected.
func toString(v any) (string, error) {
	switch v.(type) {
	case []any, map[string]any, map[any]any:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

// ExpandPath expands environment variables and a leading ~ in path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
