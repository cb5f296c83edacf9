// Package email provides SMTP email notification services.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/fgeck/backupkit/internal/config"
	"github.com/fgeck/backupkit/internal/models"
	"github.com/nicholas-fedor/shoutrrr"
	"github.com/rs/zerolog"
)

// ErrNoRecipients is reported when no valid recipient remains after filtering.
var ErrNoRecipients = errors.New("no valid recipients")

// Service defines the interface for email notification operations.
type Service interface {
	Send(ctx context.Context, cfg models.SMTPConfig, msg models.EmailMessage) (*models.EmailResult, error)
	SendBackupSummary(ctx context.Context, cfg models.SMTPConfig, report models.BackupReport, to []string) (*models.EmailResult, error)
}

// Dispatcher delivers a message to a shoutrrr service URL.
type Dispatcher interface {
	Send(rawURL, message string) error
}

type shoutrrrDispatcher struct{}

func (shoutrrrDispatcher) Send(rawURL, message string) error {
	return shoutrrr.Send(rawURL, message)
}

// Impl implements the email Service interface.
type Impl struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// New creates a new email service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		dispatcher: shoutrrrDispatcher{},
		logger:     logger,
	}
}

// NewWithDispatcher creates a new email service with a custom dispatcher (for testing).
func NewWithDispatcher(logger zerolog.Logger, dispatcher Dispatcher) *Impl {
	return &Impl{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send delivers msg over SMTP. Invalid recipients are skipped; when msg.To
// is empty the default recipient from cfg is used.
func (s *Impl) Send(ctx context.Context, cfg models.SMTPConfig, msg models.EmailMessage) (*models.EmailResult, error) {
	result := &models.EmailResult{}

	if err := cfg.Validate(); err != nil {
		result.Error = fmt.Errorf("invalid SMTP configuration: %w", err)
		s.logger.Error().Err(result.Error).Msg("email not sent")
		return result, nil
	}

	recipients := s.prepareRecipients(msg.To, cfg.ToEmail)
	if len(recipients) == 0 {
		result.Error = ErrNoRecipients
		s.logger.Error().Str("subject", msg.Subject).Msg("no valid recipients provided")
		return result, nil
	}
	result.Recipients = recipients

	if err := ctx.Err(); err != nil {
		result.Error = fmt.Errorf("email cancelled: %w", err)
		return result, nil
	}

	s.logger.Info().
		Str("server", cfg.Server).
		Int("recipients", len(recipients)).
		Str("subject", msg.Subject).
		Msg("sending email")

	if err := s.dispatcher.Send(smtpURL(cfg, recipients, msg), msg.Body); err != nil {
		result.Error = fmt.Errorf("failed to send email: %w", err)
		s.logger.Error().Err(err).Str("subject", msg.Subject).Msg("email delivery failed")
		return result, nil
	}

	result.Sent = true
	s.logger.Info().
		Int("recipients", len(recipients)).
		Str("subject", msg.Subject).
		Msg("email sent successfully")

	return result, nil
}

// SendBackupSummary renders report with BuildSummary and sends it to to, or
// to the default recipient when to is empty.
func (s *Impl) SendBackupSummary(ctx context.Context, cfg models.SMTPConfig, report models.BackupReport, to []string) (*models.EmailResult, error) {
	subject, body := BuildSummary(report)
	return s.Send(ctx, cfg, models.EmailMessage{
		To:      to,
		Subject: subject,
		Body:    body,
	})
}

func (s *Impl) prepareRecipients(to []string, fallback string) []string {
	candidates := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			candidates = append(candidates, addr)
		}
	}
	if len(candidates) == 0 && strings.TrimSpace(fallback) != "" {
		candidates = append(candidates, strings.TrimSpace(fallback))
	}

	valid := make([]string, 0, len(candidates))
	for _, addr := range candidates {
		if !config.ValidEmail(addr) {
			s.logger.Warn().Str("email", addr).Msg("invalid email address skipped")
			continue
		}
		valid = append(valid, addr)
	}
	return valid
}

// smtpURL builds a shoutrrr smtp:// URL. The sender address doubles as the
// login name and the token as its password.
func smtpURL(cfg models.SMTPConfig, recipients []string, msg models.EmailMessage) string {
	q := url.Values{}
	q.Set("from", cfg.FromEmail)
	q.Set("to", strings.Join(recipients, ","))
	q.Set("subject", msg.Subject)
	q.Set("auth", "Plain")
	q.Set("usestarttls", "yes")
	if msg.HTML {
		q.Set("usehtml", "yes")
	}

	u := url.URL{
		Scheme:   "smtp",
		User:     url.UserPassword(cfg.FromEmail, cfg.Token),
		Host:     net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port)),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}
