package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db sqlx.ExtContext
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db sqlx.ExtContext) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert creates the session or bumps its activity timestamps
func (r *SessionRepository) Upsert(ctx context.Context, session models.Session) (*models.Session, error) {
	now := time.Now().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}

	query := `
		INSERT INTO user_sessions (session_id, name, started_at, last_activity, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET last_activity = EXCLUDED.last_activity,
		    updated_at = EXCLUDED.updated_at,
		    name = COALESCE(EXCLUDED.name, user_sessions.name)
		RETURNING session_id, name, started_at, last_activity, updated_at
	`

	var out models.Session
	if err := sqlx.GetContext(ctx, r.db, &out, query, session.SessionID, session.Name, session.StartedAt, now); err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}
	return &out, nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	query := `
		SELECT session_id, name, started_at, last_activity, updated_at
		FROM user_sessions
		WHERE session_id = $1
	`

	err := sqlx.GetContext(ctx, r.db, &session, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}
