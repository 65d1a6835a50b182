package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db sqlx.ExtContext
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db sqlx.ExtContext) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(ctx context.Context, message models.Message) (*models.Message, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if message.Type == "" {
		message.Type = models.TypeText
	}

	query := `
		INSERT INTO messages (id, conversation_id, session_id, content, role, type, audio_url, cards, timestamp)
		VALUES (:id, :conversation_id, :session_id, :content, :role, :type, :audio_url, :cards, :timestamp)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return &message, nil
}

// ListByConversation retrieves messages for a conversation in send order
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages := []models.Message{}
	query := `
		SELECT id, conversation_id, session_id, content, role, type, audio_url, cards, timestamp
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC
	`

	if err := sqlx.SelectContext(ctx, r.db, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// ListBySession retrieves every message of a session across its conversations
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	messages := []models.Message{}
	query := `
		SELECT id, conversation_id, session_id, content, role, type, audio_url, cards, timestamp
		FROM messages
		WHERE session_id = $1
		ORDER BY timestamp ASC
	`

	if err := sqlx.SelectContext(ctx, r.db, &messages, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list session messages: %w", err)
	}
	return messages, nil
}

// DeleteByConversation removes all messages of a conversation
func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = $1", conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return result.RowsAffected()
}
