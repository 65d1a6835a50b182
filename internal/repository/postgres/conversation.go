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

const conversationColumns = `
	c.conversation_id, c.session_id, c.name, c.started_at, c.ended_at,
	(
		SELECT m.content FROM messages m
		WHERE m.conversation_id = c.conversation_id AND m.role = 'user'
		ORDER BY m.timestamp DESC
		LIMIT 1
	) AS last_user_message
`

// ConversationRepository implements repository.ConversationRepository using PostgreSQL
type ConversationRepository struct {
	db sqlx.ExtContext
}

// NewConversationRepository creates a new PostgreSQL conversation repository
func NewConversationRepository(db sqlx.ExtContext) repository.ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation, leaving an existing row with the same id untouched
func (r *ConversationRepository) Create(ctx context.Context, conversation models.Conversation) (*models.Conversation, error) {
	if conversation.StartedAt.IsZero() {
		conversation.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO conversations (conversation_id, session_id, name, started_at, ended_at)
		VALUES (:conversation_id, :session_id, :name, :started_at, :ended_at)
		ON CONFLICT (conversation_id) DO NOTHING
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return r.Get(ctx, conversation.ConversationID)
}

// Get retrieves a conversation by ID
func (r *ConversationRepository) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.conversation_id = $1`

	if err := sqlx.GetContext(ctx, r.db, &conversation, query, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// ListBySession retrieves a session's conversations, newest first
func (r *ConversationRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error) {
	conversations := []models.Conversation{}
	query := `SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.session_id = $1
		ORDER BY c.started_at DESC
	`

	if err := sqlx.SelectContext(ctx, r.db, &conversations, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// Latest retrieves the most recently started conversation of a session
func (r *ConversationRepository) Latest(ctx context.Context, sessionID string) (*models.Conversation, error) {
	var conversation models.Conversation
	query := `SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.session_id = $1
		ORDER BY c.started_at DESC
		LIMIT 1
	`

	if err := sqlx.GetContext(ctx, r.db, &conversation, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest conversation: %w", err)
	}
	return &conversation, nil
}
