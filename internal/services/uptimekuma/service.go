// Package uptimekuma pushes heartbeats to Uptime Kuma push monitors.
package uptimekuma

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/rs/zerolog"
)

// Defaults applied when neither the caller nor the push URL sets a value.
const (
	DefaultStatus  = "up"
	DefaultMsg     = "OK"
	DefaultTimeout = 5 * time.Second
)

// Heartbeat statuses understood by Uptime Kuma.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusPending = "pending"
)

// ErrNoURL is reported when no push URL is configured.
var ErrNoURL = errors.New("no push URL configured")

// Service defines the interface for Uptime Kuma heartbeat operations.
type Service interface {
	Send(ctx context.Context, hb models.Heartbeat) (*models.HeartbeatResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Uptime Kuma Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new Uptime Kuma service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// NewWithClient creates a new Uptime Kuma service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send pushes one heartbeat. Each parameter is taken from hb when set, else
// from the query of hb.URL, else from the defaults. The request is sent once;
// any failure is reported in the result.
func (s *Impl) Send(ctx context.Context, hb models.Heartbeat) (*models.HeartbeatResult, error) {
	result := &models.HeartbeatResult{}

	if hb.URL == "" {
		result.Error = ErrNoURL
		s.logger.Debug().Msg("Uptime Kuma heartbeat skipped: no URL provided")
		return result, nil
	}

	finalURL, err := BuildURL(hb)
	if err != nil {
		result.Error = err
		s.logger.Error().Err(err).Msg("Uptime Kuma heartbeat failed")
		return result, nil
	}
	result.FinalURL = finalURL

	timeout := hb.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Error = fmt.Errorf("heartbeat timeout after %s: %w", timeout, err)
		} else {
			result.Error = fmt.Errorf("heartbeat connection error: %w", err)
		}
		s.logger.Warn().Err(result.Error).Msg("Uptime Kuma heartbeat failed")
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Errorf("heartbeat failed: HTTP %d", resp.StatusCode)
		s.logger.Warn().Int("status", resp.StatusCode).Msg("Uptime Kuma heartbeat failed")
		return result, nil
	}

	result.Sent = true
	s.logger.Debug().Int("status", resp.StatusCode).Msg("Uptime Kuma heartbeat sent successfully")

	return result, nil
}

// BuildURL resolves the heartbeat parameters and returns the push URL with a
// query holding only status, msg and (when known) ping.
func BuildURL(hb models.Heartbeat) (string, error) {
	u, err := url.Parse(hb.URL)
	if err != nil {
		return "", fmt.Errorf("invalid push URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid push URL %q: scheme must be http or https", hb.URL)
	}

	// Malformed pairs are skipped; whatever parsed is still used.
	existing, _ := url.ParseQuery(u.RawQuery)

	q := url.Values{}
	q.Set("status", pick(hb.Status, existing.Get("status"), DefaultStatus))
	q.Set("msg", pick(hb.Msg, existing.Get("msg"), DefaultMsg))

	switch {
	case hb.Ping != nil:
		q.Set("ping", strconv.Itoa(*hb.Ping))
	case existing.Get("ping") != "":
		if ping, ok := parsePing(existing.Get("ping")); ok {
			q.Set("ping", strconv.Itoa(ping))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func pick(explicit, fromURL, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if fromURL != "" {
		return fromURL
	}
	return fallback
}

// parsePing accepts integer or decimal milliseconds, truncating fractions.
func parsePing(s string) (int, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
