// Package logging sets up file logging with scheduled rotation for backup
// monitoring runs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultName     = "backup_monitor"
	DefaultDir      = "log"
	DefaultRotation = "weekly_4"
	DefaultFormat   = FormatBackupMonitor

	// maxFileSizeMB bounds a single file between scheduled rotations.
	maxFileSizeMB = 100
)

// Options configures Setup.
type Options struct {
	Name     string // logger name, also the file name when File is empty
	Dir      string // directory for <Name>.log
	File     string // explicit log file path, overrides Dir
	Level    string // DEBUG, INFO, WARNING, ERROR or CRITICAL
	Rotation string // key of Rotations
	Format   string // default, detailed, simple, backup_monitor or json

	// Console, when set, receives the same records.
	Console io.Writer

	// RedirectStd captures os.Stdout at INFO and os.Stderr at ERROR.
	RedirectStd bool
}

// Logging owns the log file, its rotation schedule and any stream
// redirection. Call Close when done.
type Logging struct {
	Logger zerolog.Logger

	name     string
	path     string
	level    zerolog.Level
	rotation Rotation
	format   string
	file     *lumberjack.Logger
	cron     *cron.Cron
	restore  func()
	closeMu  sync.Mutex
	closed   bool
}

// LogInfo describes an active logging setup.
type LogInfo struct {
	Name       string
	Level      string
	File       string
	Format     string
	Rotation   string
	Schedule   string
	MaxBackups int
	Redirected bool
	NextRotate time.Time
}

// Setup creates the log directory, opens the log file and starts the
// rotation schedule. An unknown level falls back to INFO; unknown rotation or
// format presets are errors.
func Setup(opts Options) (*Logging, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Rotation == "" {
		opts.Rotation = DefaultRotation
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}

	rotation, err := LookupRotation(opts.Rotation)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	if !formats[opts.Format] {
		return nil, fmt.Errorf("failed to setup logging: format %q not found", opts.Format)
	}

	level, levelErr := ParseLevel(opts.Level)

	path := opts.File
	if path == "" {
		path = filepath.Join(opts.Dir, opts.Name+".log")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to setup logging: creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: rotation.MaxBackups,
		LocalTime:  true,
	}

	fileOut, err := newWriter(file, opts.Format, opts.Name, true)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	writers := []io.Writer{fileOut}
	if opts.Console != nil {
		consoleOut, err := newWriter(opts.Console, opts.Format, opts.Name, false)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to setup logging: %w", err)
		}
		writers = append(writers, consoleOut)
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("logger", opts.Name)
	if opts.Format == FormatDetailed {
		ctx = ctx.Caller()
	}

	l := &Logging{
		Logger:   ctx.Logger(),
		name:     opts.Name,
		path:     path,
		level:    level,
		rotation: rotation,
		format:   opts.Format,
		file:     file,
	}

	l.cron = cron.New(cron.WithLocation(time.Local))
	if _, err := l.cron.AddFunc(rotation.Schedule, l.rotate); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to setup logging: scheduling rotation: %w", err)
	}
	l.cron.Start()

	if levelErr != nil {
		l.Logger.Warn().Err(levelErr).Msg("falling back to INFO")
	}

	if opts.RedirectStd {
		restore, err := RedirectStd(l.Logger, zerolog.InfoLevel, zerolog.ErrorLevel)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to setup logging: %w", err)
		}
		l.restore = restore
	}

	l.Logger.Info().Msgf("Logging initialized for %s", opts.Name)
	l.Logger.Info().Msgf("Log file: %s", path)
	l.Logger.Info().Msgf("Log level: %s", levelName(level.String()))
	l.Logger.Info().Msgf("Rotation: %s", rotation.Name)

	return l, nil
}

func newWriter(out io.Writer, format, name string, noColor bool) (io.Writer, error) {
	if format == FormatJSON {
		return out, nil
	}
	w := zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       noColor,
		FieldsExclude: []string{"logger"},
	}
	if err := consoleFormat(&w, format, name); err != nil {
		return nil, err
	}
	return w, nil
}

func (l *Logging) rotate() {
	if err := l.file.Rotate(); err != nil {
		l.Logger.Error().Err(err).Msg("scheduled log rotation failed")
		return
	}
	l.Logger.Debug().Str("rotation", l.rotation.Name).Msg("log file rotated")
}

// Rotate rotates the log file immediately.
func (l *Logging) Rotate() error {
	return l.file.Rotate()
}

// Path returns the absolute log file path.
func (l *Logging) Path() string {
	return l.path
}

// Info describes the active configuration.
func (l *Logging) Info() LogInfo {
	info := LogInfo{
		Name:       l.name,
		Level:      levelName(l.level.String()),
		File:       l.path,
		Format:     l.format,
		Rotation:   l.rotation.Name,
		Schedule:   l.rotation.Schedule,
		MaxBackups: l.rotation.MaxBackups,
		Redirected: l.restore != nil,
	}
	if entries := l.cron.Entries(); len(entries) > 0 {
		info.NextRotate = entries[0].Next
	}
	return info
}

// Close restores redirected streams, stops the rotation schedule and closes
// the log file. It is safe to call more than once.
func (l *Logging) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	if l.restore != nil {
		l.restore()
	}
	<-l.cron.Stop().Done()
	return l.file.Close()
}
