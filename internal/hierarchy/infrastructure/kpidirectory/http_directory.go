// Package kpidirectory looks up the KPIs a user may link work to, either
// from the external KPI tracker or from a static YAML file.
package kpidirectory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable indicates the KPI tracker could not answer. Callers treat
// it as a hard failure; no KPIs are assumed.
var ErrUnavailable = errors.New("kpi directory unavailable")

// HTTPConfig configures the KPI tracker client.
type HTTPConfig struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultHTTPConfig returns the client defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// HTTPDirectory calls GET {base}/kpis/approved-for-linking?userId= behind a
// circuit breaker.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]application.KPIReference]
	logger  *slog.Logger
}

// NewHTTPDirectory creates a client for the KPI tracker.
func NewHTTPDirectory(cfg HTTPConfig, logger *slog.Logger) *HTTPDirectory {
	defaults := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:    "kpi-directory",
		Timeout: cfg.OpenTimeout,
		IsSuccessful: func(err error) bool {
			var ce *clientError
			return err == nil || errors.As(err, &ce)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &HTTPDirectory{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]application.KPIReference](settings),
		logger:  logger,
	}
}

// ApprovedForLinking returns the user's linkable KPIs. An unknown user has
// none. Transport failures and 5xx responses surface as ErrUnavailable and
// count towards opening the breaker; other 4xx responses do not.
func (d *HTTPDirectory) ApprovedForLinking(ctx context.Context, userID uuid.UUID) ([]application.KPIReference, error) {
	refs, err := d.breaker.Execute(func() ([]application.KPIReference, error) {
		return d.fetch(ctx, userID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// State reports the breaker state for health checks.
func (d *HTTPDirectory) State() gobreaker.State {
	return d.breaker.State()
}

// Healthy fails while the breaker is open.
func (d *HTTPDirectory) Healthy(context.Context) error {
	if d.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	return nil
}

func (d *HTTPDirectory) fetch(ctx context.Context, userID uuid.UUID) ([]application.KPIReference, error) {
	endpoint := d.baseURL + "/kpis/approved-for-linking?" + url.Values{"userId": {userID.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []application.KPIReference{}, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &clientError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var refs []application.KPIReference
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if refs == nil {
		refs = []application.KPIReference{}
	}
	return refs, nil
}

// clientError is a 4xx answer. It is the caller's mistake, not an outage.
type clientError struct {
	status int
	body   string
}

func (e *clientError) Error() string {
	return fmt.Sprintf("kpi directory rejected request: status %d: %s", e.status, e.body)
}
