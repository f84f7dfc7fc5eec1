// Package upstream is the shared HTTP plumbing of the geocoding and map data
// clients: rate limiting, User-Agent, metrics and transient error classification.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/goose-osm/goose/internal/domain"
	"github.com/goose-osm/goose/internal/metrics"
)

const maxBodyBytes = 32 << 20

// Config holds the settings shared by every upstream client.
type Config struct {
	Service        string
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64 // 0 disables rate limiting
	HTTPClient     *http.Client
}

// Client sends requests to one upstream service.
type Client struct {
	service   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// New creates a Client. A zero timeout defaults to 10s.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{service: cfg.Service, userAgent: cfg.UserAgent, http: httpClient}
	if cfg.RequestsPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return c
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.Status, e.Body)
}

// Transient reports whether retrying may help.
func (e *StatusError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Unwrap lets transient answers match domain.ErrProviderUnavailable.
func (e *StatusError) Unwrap() error {
	if e.Transient() {
		return domain.ErrProviderUnavailable
	}
	return nil
}

// Do waits for the rate limiter, sends req and returns the response body.
// Network failures and transient statuses wrap domain.ErrProviderUnavailable.
// A context cancellation or deadline is returned as is.
func (c *Client) Do(ctx context.Context, operation string, req *http.Request) (body []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(c.service, operation, start, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit: %w", c.service, ctxErr(ctx, err))
		}
	}

	req = req.WithContext(ctx)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", c.service, operation, ctx.Err())
		}
		return nil, fmt.Errorf("%s %s: %v: %w", c.service, operation, err, domain.ErrProviderUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %v: %w", c.service, operation, err, domain.ErrProviderUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Service: c.service, Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// IsTransient reports whether an upstream error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrProviderUnavailable)
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
