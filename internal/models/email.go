package models

import (
	"errors"
	"fmt"
)

// SMTPConfig holds SMTP transport settings loaded from an env file.
type SMTPConfig struct {
	Server    string
	Port      int
	Token     string // app password
	FromEmail string
	ToEmail   string // default recipient, optional
}

// Validate checks that the required settings are present.
func (c SMTPConfig) Validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("SMTP_SERVER is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("SMTP_TOKEN is required"))
	}
	if c.FromEmail == "" {
		errs = append(errs, errors.New("FROM_EMAIL is required"))
	}
	return errors.Join(errs...)
}

// EmailMessage holds a single outbound email.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// EmailResult holds the result of an email send.
type EmailResult struct {
	Sent       bool
	Recipients []string
	Error      error
}
