package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopchat/shopchat-backend/internal/automation"
)

// WebhookCheck is the outcome of pinging one webhook.
type WebhookCheck struct {
	URL        string `json:"url"`
	OK         bool   `json:"ok"`
	Healthy    bool   `json:"healthy"`
	Status     int    `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// DatabaseCheck is the outcome of pinging the store.
type DatabaseCheck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ConnectionReport is the answer of the connectivity check.
type ConnectionReport struct {
	Success  bool                               `json:"success"`
	Database DatabaseCheck                      `json:"database"`
	Webhook  WebhookCheck                       `json:"webhook"`
	Health   map[string]automation.HealthStatus `json:"health"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// DiagnosticsService pings the store and the configured webhooks
type DiagnosticsService struct {
	client  *automation.Client
	store   pinger
	urls    []string
	chatURL string
	allow   func(string) bool
}

// NewDiagnosticsService creates a new diagnostics service. The configured
// urls are registered for health tracking. allow vets caller supplied urls;
// nil permits any.
func NewDiagnosticsService(client *automation.Client, store pinger, chatURL string, urls []string, allow func(string) bool) *DiagnosticsService {
	if allow == nil {
		allow = func(string) bool { return true }
	}
	client.Track(append([]string{chatURL}, urls...)...)
	return &DiagnosticsService{client: client, store: store, urls: urls, chatURL: chatURL, allow: allow}
}

// TestWebhooks pings every url concurrently with a test payload. Results keep
// the order of urls. An empty list checks the configured webhooks. Supplied
// urls the allow-list rejects are reported without being called.
func (s *DiagnosticsService) TestWebhooks(ctx context.Context, urls []string) []WebhookCheck {
	configured := len(urls) == 0
	if configured {
		urls = s.urls
	}

	results := make([]WebhookCheck, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			if !configured && !s.allow(u) {
				results[i] = WebhookCheck{URL: u, Error: MsgWebhookHostNotAllowed}
				return
			}
			results[i] = s.ping(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

// TestConnection checks the database and the chat webhook.
func (s *DiagnosticsService) TestConnection(ctx context.Context) ConnectionReport {
	report := ConnectionReport{Database: DatabaseCheck{OK: true}}
	if err := s.store.Ping(ctx); err != nil {
		report.Database = DatabaseCheck{OK: false, Error: err.Error()}
	}
	report.Webhook = s.ping(ctx, s.chatURL)
	report.Health = s.client.Health().Snapshot()
	report.Success = report.Database.OK && report.Webhook.OK
	return report
}

func (s *DiagnosticsService) ping(ctx context.Context, url string) WebhookCheck {
	check := WebhookCheck{URL: url}
	start := time.Now()
	resp, err := s.client.Post(ctx, url, map[string]interface{}{"test": true, "source": "diagnostics"})
	check.DurationMs = time.Since(start).Milliseconds()
	check.Healthy = s.client.Health().IsHealthy(url)
	if err != nil {
		check.Error = err.Error()
		var upstream *automation.UpstreamError
		if errors.As(err, &upstream) {
			check.Status = upstream.Status
		}
		return check
	}
	check.OK = true
	check.Status = resp.Status
	return check
}
