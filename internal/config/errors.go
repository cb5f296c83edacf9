package config

import (
	"errors"
	"fmt"
	"strings"
)

// Causes attached to field errors. Use errors.Is on a *ValidationError to
// check whether any field failed for a given reason.
var (
	ErrDuplicateBackupName = errors.New("duplicate backup name")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrOutOfRange          = errors.New("value out of range")
	ErrRequired            = errors.New("value is required")
	ErrInvalidType         = errors.New("invalid value type")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidName         = errors.New("invalid backup name")
	ErrUnknownField        = errors.New("unknown field")
)

// ParseError is returned when the configuration document is not well-formed
// structured data, as opposed to containing invalid field values.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FieldError describes one invalid field.
type FieldError struct {
	Path    string // e.g. "backup_check_list[1].min_size"
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return e.Path + ": " + e.Message
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationError aggregates every field-level failure of a load.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, fe := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(fe.Error())
	}
	return b.String()
}

// Unwrap exposes every field cause to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, fe := range e.Errors {
		errs = append(errs, fe)
	}
	return errs
}

// Has reports whether path failed validation.
func (e *ValidationError) Has(path string) bool {
	for _, fe := range e.Errors {
		if fe.Path == path {
			return true
		}
	}
	return false
}

// collector accumulates field errors, keeping only the first per path so a
// type error is not followed by a range error for the same field.
type collector struct {
	errs []FieldError
	seen map[string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(path string, err error, format string, args ...any) {
	if c.seen[path] {
		return
	}
	c.seen[path] = true
	c.errs = append(c.errs, FieldError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	})
}

func (c *collector) failed(path string) bool {
	return c.seen[path]
}

func (c *collector) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: c.errs}
}
