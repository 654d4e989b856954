// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package api is the REST client for the planner backend.
//
// Every request is paced by a token-bucket limiter, so a burst of debounced
// refreshes cannot flood the backend, and runs inside a circuit breaker that
// fails fast while the backend is unhealthy. Client errors (4xx) do not count
// against the breaker.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
	"github.com/tomtom215/tempo/internal/models"
)

const (
	breakerName     = "planner-api"
	maxResponseSize = 4 << 20 // 4 MB
	maxErrorBody    = 512
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("api: backend unavailable (circuit open)")

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RequestsPerSecond of 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64

	HTTPClient *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client calls the planner REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]byte]
	log        zerolog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = 5
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = 0.6
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		log:        logging.WithComponent("api"),
	}
	c.cb = newBreaker(cfg, c.log)
	return c
}

func newBreaker(cfg Config, log zerolog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.BreakerFailureRatio {
				log.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			log.Info().Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},

		// A rejected request is the caller's problem, not a sick backend.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && !se.Temporary()
		},
	})
}

// BreakerState returns the breaker state as "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return stateToString(c.cb.State())
}

// Get decodes the response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the response into out (may be nil).
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// Patch sends in as JSON and decodes the response into out (may be nil).
func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPatch, path, in, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resource := resourceOf(path)

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("api: %s %s: rate limit wait: %w", method, path, err)
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, in)
	})
	metrics.RecordAPIRequest(method, resource, statusLabel(err), time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Warn().Str("method", method).Str("path", path).Msg("Request rejected by circuit breaker")
			return fmt.Errorf("%w: %s %s", ErrCircuitOpen, method, path)
		}
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	return decode(body, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any) ([]byte, error) {
	reqBody := io.Reader(http.NoBody)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("api: encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(method, path, resp.StatusCode, data)
	}

	logging.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("API request completed")
	return data, nil
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	se := &StatusError{Method: method, Path: path, StatusCode: status}

	var env models.APIResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		se.Code = env.Error.Code
		se.Message = env.Error.Message
	}

	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	se.Body = string(body)
	return se
}

// decode accepts both enveloped ({"status","data"}) and bare JSON bodies.
func decode(body []byte, out any) error {
	var env models.APIResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Status != "" {
		if env.Error != nil {
			return env.Error
		}
		body = env.Data
		if len(body) == 0 {
			return nil
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// resourceOf returns the first path segment, used as a metrics label.
func resourceOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%dxx", se.StatusCode/100)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "rejected"
	}
	return "error"
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
