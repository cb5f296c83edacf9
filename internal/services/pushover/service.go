// Package pushover provides Pushover push notification services.
package pushover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/rs/zerolog"
)

// API limits and defaults.
const (
	MaxMessageLength = 1024
	MaxTitleLength   = 250

	PriorityLowest    = -2
	PriorityLow       = -1
	PriorityNormal    = 0
	PriorityHigh      = 1
	PriorityEmergency = 2

	MinEmergencyRetry  = 30
	MaxEmergencyExpire = 10800

	DefaultRetry  = 600
	DefaultExpire = 7200
	DefaultTitle  = "Backup Monitor"

	truncatedSuffix = " [TRUNCATED]"
	correctedSuffix = " [Priority auto-corrected]"
)

// ErrInvalidCredentials is reported when the token or user key is malformed.
var ErrInvalidCredentials = errors.New("invalid pushover credentials")

// Service defines the interface for Pushover notification operations.
type Service interface {
	Send(ctx context.Context, cfg models.PushoverConfig, msg models.PushoverMessage) (*models.PushoverResult, error)
	SendBackupAlert(ctx context.Context, cfg models.PushoverConfig, backupName, errorMessage string, priority int) (*models.PushoverResult, error)
	SendBackupSummary(ctx context.Context, cfg models.PushoverConfig, summary Summary, priority int) (*models.PushoverResult, error)
	SendTest(ctx context.Context, cfg models.PushoverConfig) (*models.PushoverResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Pushover Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Pushover service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.pushover.net",
	}
}

// NewWithClient creates a new Pushover service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// apiResponse is the response body of the messages endpoint.
type apiResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Receipt string   `json:"receipt"`
	Errors  []string `json:"errors"`
}

// Send delivers msg. Out-of-range parameters are corrected rather than
// rejected: long texts are truncated, an invalid priority becomes low
// priority and emergency retry/expire are clamped to the API limits.
func (s *Impl) Send(ctx context.Context, cfg models.PushoverConfig, msg models.PushoverMessage) (*models.PushoverResult, error) {
	result := &models.PushoverResult{}

	if err := ValidateCredentials(cfg); err != nil {
		result.Error = err
		s.logger.Error().Err(err).Msg("cannot send notification")
		return result, nil
	}

	p := s.prepare(cfg, msg)
	result.Corrected = p.corrected

	form := url.Values{}
	form.Set("token", cfg.Token)
	form.Set("user", cfg.User)
	form.Set("message", p.message)
	form.Set("title", p.title)
	form.Set("priority", strconv.Itoa(p.priority))
	if cfg.Device != "" {
		form.Set("device", cfg.Device)
	}
	if p.priority == PriorityEmergency {
		form.Set("retry", strconv.Itoa(p.retry))
		form.Set("expire", strconv.Itoa(p.expire))
	}

	s.logger.Info().
		Str("title", p.title).
		Int("priority", p.priority).
		Msg("sending Pushover notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/1/messages.json", strings.NewReader(form.Encode()))
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		s.logger.Error().Err(err).Msg("failed to send Pushover notification")
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var apiResp apiResponse
	jsonErr := json.Unmarshal(body, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Errorf("pushover API returned status %d", resp.StatusCode)
		if jsonErr == nil && len(apiResp.Errors) > 0 {
			result.Error = fmt.Errorf("pushover API returned status %d: %s", resp.StatusCode, strings.Join(apiResp.Errors, ", "))
		}
		s.logger.Error().Err(result.Error).Msg("Pushover notification rejected")
		return result, nil
	}

	// A 2xx response that is not JSON is still a delivery.
	if jsonErr == nil && apiResp.Status != 1 {
		errs := apiResp.Errors
		if len(errs) == 0 {
			errs = []string{"Unknown error"}
		}
		result.Error = fmt.Errorf("pushover API error: %s", strings.Join(errs, ", "))
		s.logger.Error().Err(result.Error).Msg("Pushover notification rejected")
		return result, nil
	}

	result.Sent = true
	result.Receipt = apiResp.Receipt
	s.logger.Info().Int("status", resp.StatusCode).Msg("Pushover notification sent successfully")
	if result.Receipt != "" {
		s.logger.Info().Str("receipt", result.Receipt).Msg("emergency notification receipt")
	}

	return result, nil
}

// Summary holds the counts reported by SendBackupSummary.
type Summary struct {
	Total    int
	Success  int
	Failed   int
	Errors   int // every recorded problem, including ones not tied to a backup
	Duration time.Duration
}

// OK reports whether the run had neither failed backups nor other errors.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errors == 0
}

// SendBackupAlert reports a single failed backup.
func (s *Impl) SendBackupAlert(ctx context.Context, cfg models.PushoverConfig, backupName, errorMessage string, priority int) (*models.PushoverResult, error) {
	return s.Send(ctx, cfg, models.PushoverMessage{
		Title:    "Backup Alert: " + backupName,
		Message:  fmt.Sprintf("Backup '%s' encountered an issue:\n%s", backupName, errorMessage),
		Priority: &priority,
	})
}

// SendBackupSummary reports the outcome of a check run. Any failed backup or
// other error raises the priority to high.
func (s *Impl) SendBackupSummary(ctx context.Context, cfg models.PushoverConfig, summary Summary, priority int) (*models.PushoverResult, error) {
	icon, title := "✅", "Backup Check: All OK"
	if !summary.OK() {
		icon, title = "❌", "Backup Check: Issues Detected"
		priority = PriorityHigh
	}

	message := fmt.Sprintf("%s Backup Check Complete\nTotal: %d, Success: %d, Failed: %d",
		icon, summary.Total, summary.Success, summary.Failed)
	if summary.Errors > 0 {
		message += fmt.Sprintf("\nErrors: %d", summary.Errors)
	}
	message += fmt.Sprintf("\nDuration: %.1fs", summary.Duration.Seconds())

	return s.Send(ctx, cfg, models.PushoverMessage{
		Title:    title,
		Message:  message,
		Priority: &priority,
	})
}

// SendTest sends a low priority notification to verify the configuration.
func (s *Impl) SendTest(ctx context.Context, cfg models.PushoverConfig) (*models.PushoverResult, error) {
	priority := PriorityLow
	return s.Send(ctx, cfg, models.PushoverMessage{
		Title:    "Test Notification",
		Message:  "Test notification from backupkit",
		Priority: &priority,
	})
}

type prepared struct {
	message   string
	title     string
	priority  int
	retry     int
	expire    int
	corrected bool
}

func (s *Impl) prepare(cfg models.PushoverConfig, msg models.PushoverMessage) prepared {
	p := prepared{
		message: msg.Message,
		title:   msg.Title,
		retry:   msg.Retry,
		expire:  msg.Expire,
	}

	if p.title == "" {
		p.title = cfg.Title
	}
	if p.title == "" {
		p.title = DefaultTitle
	}

	if t, ok := truncate(p.message, MaxMessageLength, 1010); ok {
		p.message = t
		s.logger.Warn().Msg("message truncated to fit 1024 character limit")
	}
	if t, ok := truncate(p.title, MaxTitleLength, 230); ok {
		p.title = t
		s.logger.Warn().Msg("title truncated to fit 250 character limit")
	}

	p.priority, p.corrected = CorrectPriority(msg.Priority)
	if p.corrected {
		s.logger.Warn().Int("priority", *msg.Priority).Msg("invalid priority corrected to -1 (low priority)")
		p.message += correctedSuffix
	}

	if p.priority == PriorityEmergency {
		if p.retry == 0 {
			p.retry = DefaultRetry
		}
		if p.expire == 0 {
			p.expire = DefaultExpire
		}
		if p.retry < MinEmergencyRetry {
			p.retry = MinEmergencyRetry
			s.logger.Warn().Msg("emergency retry interval corrected to minimum 30 seconds")
		}
		if p.expire > MaxEmergencyExpire {
			p.expire = MaxEmergencyExpire
			s.logger.Warn().Msg("emergency expire time corrected to maximum 10800 seconds")
		}
	}

	return p
}

// CorrectPriority maps nil to normal priority and anything outside [-2, 2]
// to low priority. The second return value reports a correction.
func CorrectPriority(p *int) (int, bool) {
	if p == nil {
		return PriorityNormal, false
	}
	if *p < PriorityLowest || *p > PriorityEmergency {
		return PriorityLow, true
	}
	return *p, false
}

// truncate cuts s to keep runes plus a marker when it exceeds limit runes.
func truncate(s string, limit, keep int) (string, bool) {
	r := []rune(s)
	if len(r) <= limit {
		return s, false
	}
	return string(r[:keep]) + truncatedSuffix, true
}
