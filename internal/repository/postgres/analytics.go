package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shopchat/shopchat-backend/internal/database"
	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// AnalyticsRepository persists widget events in analytics_events
type AnalyticsRepository struct {
	db sqlx.ExtContext
}

// NewAnalyticsRepository creates a new PostgreSQL analytics repository
func NewAnalyticsRepository(db sqlx.ExtContext) repository.AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Append stores one event
func (r *AnalyticsRepository) Append(ctx context.Context, event models.AnalyticsEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO analytics_events (id, event, session_id, properties, timestamp)
		VALUES (:id, :event, :session_id, :properties, :timestamp)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, event); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("analytics event %s: %w", event.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to append analytics event: %w", err)
	}
	return nil
}

// List returns events matching filter, newest first
func (r *AnalyticsRepository) List(ctx context.Context, filter repository.AnalyticsFilter) ([]models.AnalyticsEvent, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.Event != "" {
		args = append(args, filter.Event)
		where = append(where, fmt.Sprintf("event = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	query := "SELECT id, event, session_id, properties, timestamp FROM analytics_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	events := []models.AnalyticsEvent{}
	if err := sqlx.SelectContext(ctx, r.db, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}
	return events, nil
}
