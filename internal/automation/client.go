// Package automation talks to the external n8n workflow endpoints.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every outbound webhook call.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 2 << 20

// UpstreamError is returned when the webhook answered with a non-2xx status.
type UpstreamError struct {
	URL    string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("webhook %s returned status %d", e.URL, e.Status)
}

// UnreachableError is returned when the webhook could not be reached or timed out.
type UnreachableError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *UnreachableError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("webhook %s timed out", e.URL)
	}
	return fmt.Sprintf("webhook %s unreachable: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Response is a successful webhook answer.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
}

// Client posts JSON payloads to automation webhooks.
type Client struct {
	http    *http.Client
	timeout time.Duration
	health  *Health
	logger  *logrus.Logger
}

// NewClient creates a client whose calls are cancelled after timeout.
func NewClient(timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
		health:  NewHealth(),
		logger:  logger,
	}
}

// Health exposes per-URL call statistics.
func (c *Client) Health() *Health {
	return c.health
}

// Track registers webhook URLs whose calls feed Health.
func (c *Client) Track(urls ...string) {
	c.health.Track(urls...)
}

// Post sends payload as JSON and returns the raw answer.
func (c *Client) Post(ctx context.Context, url string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &UnreachableError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		uerr := &UnreachableError{URL: url, Err: err, Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded)}
		c.record(url, time.Since(start), uerr)
		return nil, uerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		uerr := &UnreachableError{URL: url, Err: err, Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded)}
		c.record(url, elapsed, uerr)
		return nil, uerr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UpstreamError{URL: url, Status: resp.StatusCode, Body: truncate(string(raw), 512)}
		c.record(url, elapsed, uerr)
		return nil, uerr
	}

	c.record(url, elapsed, nil)
	return &Response{Status: resp.StatusCode, Body: raw, Duration: elapsed}, nil
}

func (c *Client) record(url string, elapsed time.Duration, err error) {
	fields := logrus.Fields{
		"webhook_url": url,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		c.health.RecordError(url, err)
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			fields["status"] = upstream.Status
		}
		c.logger.WithFields(fields).WithError(err).Warn("webhook call failed")
		return
	}
	c.health.RecordSuccess(url, elapsed)
	c.logger.WithFields(fields).Debug("webhook call succeeded")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
