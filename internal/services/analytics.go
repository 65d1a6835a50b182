package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/identity"
	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

const (
	defaultAnalyticsLimit = 100
	maxAnalyticsLimit     = 1000
)

// TrackInput is one widget event as posted by the client.
type TrackInput struct {
	ID         string
	Event      string
	SessionID  string
	Properties map[string]interface{}
	Timestamp  *time.Time
}

// AnalyticsService records widget interaction events
type AnalyticsService struct {
	repo   repository.AnalyticsRepository
	logger *logrus.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.AnalyticsRepository, logger *logrus.Logger) *AnalyticsService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalyticsService{repo: repo, logger: logger}
}

// Track stores the event. Events of fallback sessions are skipped, and a
// repeated event id counts as already recorded.
func (s *AnalyticsService) Track(ctx context.Context, in TrackInput) (skipped bool, err error) {
	if strings.TrimSpace(in.Event) == "" {
		return false, invalid(MsgEventRequired)
	}
	if identity.IsFallback(in.SessionID) {
		return true, nil
	}

	event := models.AnalyticsEvent{
		ID:         in.ID,
		Event:      in.Event,
		Properties: models.JSONB(in.Properties),
	}
	if in.SessionID != "" {
		sid := in.SessionID
		event.SessionID = &sid
	}
	if in.Timestamp != nil {
		event.Timestamp = in.Timestamp.UTC()
	}

	if err := s.repo.Append(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.WithField("event_id", in.ID).Debug("duplicate analytics event ignored")
			return false, nil
		}
		return false, err
	}
	return false, nil
}

// List returns recent events, newest first.
func (s *AnalyticsService) List(ctx context.Context, sessionID string, limit int) ([]models.AnalyticsEvent, error) {
	if limit <= 0 {
		limit = defaultAnalyticsLimit
	}
	if limit > maxAnalyticsLimit {
		limit = maxAnalyticsLimit
	}
	return s.repo.List(ctx, repository.AnalyticsFilter{SessionID: sessionID, Limit: limit})
}
