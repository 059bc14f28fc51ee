// Package upstream talks to the optional remote analysis backend.
//
// Every call has a short client timeout. Callers treat any error as "go
// local" and fall back to simulated data; the client only records a binary
// online/offline state from periodic health polls.
package upstream

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
	"sync/atomic"
	"time"

	"github.com/star/satdash/internal/metrics"
)

// ErrDisabled is returned when no backend URL is configured.
var ErrDisabled = errors.New("upstream backend not configured")

// Config holds upstream configuration loaded from environment variables.
type Config struct {
	BaseURL        string        // Empty disables the upstream
	Timeout        time.Duration // Per-request timeout (default: 3s)
	HealthInterval time.Duration // Health poll interval (default: 30s)
}

const maxBodyBytes = 8 << 20

// Client fetches JSON from the backend.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	interval   time.Duration
	logger     *slog.Logger

	online    atomic.Bool
	lastCheck atomic.Int64 // unix millis
}

// New creates a client. An invalid or empty base URL yields a disabled client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		interval:   cfg.HealthInterval,
		logger:     logger,
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			logger.Warn("invalid upstream URL, running offline", "url", cfg.BaseURL, "error", err)
		} else {
			c.base = u
		}
	}
	metrics.SetUpstreamOnline(false)
	return c
}

// Enabled reports whether a backend is configured.
func (c *Client) Enabled() bool { return c.base != nil }

// Online reports the result of the last health check.
func (c *Client) Online() bool { return c.online.Load() }

// Status is a snapshot of upstream state.
type Status struct {
	Enabled   bool       `json:"enabled"`
	Online    bool       `json:"online"`
	BaseURL   string     `json:"base_url,omitempty"`
	LastCheck *time.Time `json:"last_check,omitempty"`
}

// Status returns the current upstream state.
func (c *Client) Status() Status {
	st := Status{Enabled: c.Enabled(), Online: c.Online()}
	if c.base != nil {
		st.BaseURL = c.base.String()
	}
	if ms := c.lastCheck.Load(); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		st.LastCheck = &t
	}
	return st
}

// Run polls /health every interval until ctx is cancelled. It is a no-op
// for a disabled client.
func (c *Client) Run(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	c.CheckHealth(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckHealth(ctx)
		}
	}
}

// CheckHealth probes /health and records the result.
func (c *Client) CheckHealth(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}

	var body struct {
		Status string `json:"status"`
	}
	err := c.GetJSON(ctx, "/health", nil, &body)
	online := err == nil && (body.Status == "" || body.Status == "healthy" || body.Status == "ok")

	c.lastCheck.Store(time.Now().UnixMilli())
	if prev := c.online.Swap(online); prev != online {
		if online {
			c.logger.Info("upstream backend online", "url", c.base.String())
		} else {
			c.logger.Warn("upstream backend offline", "url", c.base.String(), "error", err)
		}
	}
	metrics.SetUpstreamOnline(online)
	return online
}

// GetJSON fetches path with query and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
