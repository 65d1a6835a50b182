package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// AnalyticsStore keeps the most recent events in memory. It is reset on restart
// and meant for development and single-instance deployments only.
type AnalyticsStore struct {
	mu     sync.RWMutex
	events []models.AnalyticsEvent
	max    int
}

// NewAnalyticsStore keeps at most max events, dropping the oldest. max <= 0 means unbounded.
func NewAnalyticsStore(max int) *AnalyticsStore {
	return &AnalyticsStore{max: max}
}

func (s *AnalyticsStore) Append(ctx context.Context, event models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Properties == nil {
		event.Properties = models.JSONB{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == event.ID {
			return fmt.Errorf("analytics event %s: %w", event.ID, repository.ErrDuplicate)
		}
	}

	s.events = append(s.events, event)
	if s.max > 0 && len(s.events) > s.max {
		s.events = append([]models.AnalyticsEvent(nil), s.events[len(s.events)-s.max:]...)
	}
	return nil
}

// List returns matching events, newest first.
func (s *AnalyticsStore) List(ctx context.Context, filter repository.AnalyticsFilter) ([]models.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.AnalyticsEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if filter.SessionID != "" && (e.SessionID == nil || *e.SessionID != filter.SessionID) {
			continue
		}
		if filter.Event != "" && e.Event != filter.Event {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Len reports how many events are held.
func (s *AnalyticsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
