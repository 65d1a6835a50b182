package automation

import (
	"sync"
	"time"
)

// HealthStatus represents the health of a webhook endpoint
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorCount   int       `json:"error_count"`
	SuccessCount int       `json:"success_count"`
	ErrorRate    float64   `json:"error_rate"`
}

// Health tracks call outcomes for the registered webhook URLs. Calls to any
// other URL are not recorded, so client supplied targets cannot grow the map.
type Health struct {
	mu     sync.RWMutex
	status map[string]*HealthStatus
}

// NewHealth creates a tracker for urls
func NewHealth(urls ...string) *Health {
	h := &Health{status: make(map[string]*HealthStatus)}
	h.Track(urls...)
	return h
}

// Track registers urls for recording. Already tracked urls keep their stats.
func (h *Health) Track(urls ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := h.status[u]; !ok {
			h.status[u] = &HealthStatus{Healthy: true}
		}
	}
}

// IsHealthy returns whether a URL is considered healthy. Unknown URLs are.
func (h *Health) IsHealthy(url string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, exists := h.status[url]
	if !exists {
		return true
	}
	return status.Healthy
}

// RecordSuccess records a successful call
func (h *Health) RecordSuccess(url string, responseTime time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, ok := h.status[url]
	if !ok {
		return
	}
	status.SuccessCount++
	status.ResponseTime = responseTime.Milliseconds()
	status.LastCheck = time.Now()
	status.Healthy = true
	status.LastError = ""
	updateErrorRate(status)
}

// RecordError records a failed call
func (h *Health) RecordError(url string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, ok := h.status[url]
	if !ok {
		return
	}
	status.ErrorCount++
	status.LastError = err.Error()
	status.LastCheck = time.Now()
	updateErrorRate(status)

	// Mark unhealthy if error rate is too high
	if status.ErrorRate > 0.5 && status.ErrorCount > 5 {
		status.Healthy = false
	}
}

// Snapshot returns a copy of every tracked status
func (h *Health) Snapshot() map[string]HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]HealthStatus, len(h.status))
	for k, v := range h.status {
		out[k] = *v
	}
	return out
}

func updateErrorRate(status *HealthStatus) {
	total := status.SuccessCount + status.ErrorCount
	if total > 0 {
		status.ErrorRate = float64(status.ErrorCount) / float64(total)
	}
}
