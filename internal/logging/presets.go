package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Rotation describes when the log file is rotated and how many rotated files
// are kept. Schedule is a standard five-field cron expression.
type Rotation struct {
	Name       string
	Schedule   string
	MaxBackups int
}

// Rotation presets.
var Rotations = map[string]Rotation{
	"default":    {Name: "default", Schedule: "0 0 * * 1", MaxBackups: 4},
	"weekly_4":   {Name: "weekly_4", Schedule: "0 0 * * 1", MaxBackups: 4},
	"daily_7":    {Name: "daily_7", Schedule: "0 2 * * *", MaxBackups: 7},
	"monthly_12": {Name: "monthly_12", Schedule: "0 0 1 * *", MaxBackups: 12},
}

// Format presets.
const (
	FormatDefault       = "default"
	FormatDetailed      = "detailed"
	FormatSimple        = "simple"
	FormatBackupMonitor = "backup_monitor"
	FormatJSON          = "json"
)

var formats = map[string]bool{
	FormatDefault:       true,
	FormatDetailed:      true,
	FormatSimple:        true,
	FormatBackupMonitor: true,
	FormatJSON:          true,
}

const timeLayout = "2006-01-02 15:04:05"

// LookupRotation returns the named rotation preset.
func LookupRotation(name string) (Rotation, error) {
	r, ok := Rotations[name]
	if !ok {
		return Rotation{}, fmt.Errorf("rotation %q not found, available: %s", name, strings.Join(presetNames(Rotations), ", "))
	}
	return r, nil
}

// ParseLevel maps DEBUG, INFO, WARNING, ERROR and CRITICAL (any case) to a
// zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO", "":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL":
		return zerolog.FatalLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// levelName renders zerolog level strings with the names used in config files.
func levelName(i any) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelDebugValue:
		return "DEBUG"
	case zerolog.LevelInfoValue:
		return "INFO"
	case zerolog.LevelWarnValue:
		return "WARNING"
	case zerolog.LevelErrorValue:
		return "ERROR"
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return "CRITICAL"
	case "":
		return "???"
	}
	return strings.ToUpper(s)
}

func formatTime(i any) string {
	s, ok := i.(string)
	if !ok {
		return fmt.Sprint(i)
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return s
	}
	return t.Local().Format(timeLayout)
}

// consoleFormat configures w for one of the text presets.
func consoleFormat(w *zerolog.ConsoleWriter, format, name string) error {
	padLevel := func(i any) string { return fmt.Sprintf("%-8s", levelName(i)) }

	switch format {
	case FormatDefault:
		w.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		w.FormatTimestamp = formatTime
		w.FormatLevel = padLevel
	case FormatBackupMonitor:
		w.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		w.FormatTimestamp = func(i any) string { return formatTime(i) + " [BACKUP]" }
		w.FormatLevel = padLevel
	case FormatSimple:
		w.PartsOrder = []string{zerolog.LevelFieldName, zerolog.MessageFieldName}
		w.FormatLevel = func(i any) string { return levelName(i) + ":" }
	case FormatDetailed:
		w.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.CallerFieldName, zerolog.MessageFieldName}
		w.FormatTimestamp = func(i any) string { return formatTime(i) + " [" + name + "]" }
		w.FormatLevel = padLevel
		w.FormatCaller = func(i any) string {
			s, _ := i.(string)
			return filepath.Base(s) + " -"
		}
	default:
		return fmt.Errorf("format %q not found, available: %s", format, strings.Join(sortedKeys(formats), ", "))
	}
	return nil
}

func presetNames(m map[string]Rotation) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
