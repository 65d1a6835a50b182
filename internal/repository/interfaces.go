package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopchat/shopchat-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing id.
var ErrDuplicate = errors.New("duplicate")

// SessionRepository defines session storage operations
type SessionRepository interface {
	// Upsert inserts the session or refreshes last_activity and updated_at on conflict.
	Upsert(ctx context.Context, session models.Session) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
}

// ConversationRepository defines conversation storage operations
type ConversationRepository interface {
	// Create inserts the conversation. An existing id is returned unchanged.
	Create(ctx context.Context, conversation models.Conversation) (*models.Conversation, error)
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error)
	Latest(ctx context.Context, sessionID string) (*models.Conversation, error)
}

// MessageRepository defines message storage operations
type MessageRepository interface {
	Create(ctx context.Context, message models.Message) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
}

// AnalyticsFilter narrows an analytics listing.
type AnalyticsFilter struct {
	SessionID string
	Event     string
	Since     time.Time
	Limit     int
}

// AnalyticsRepository defines analytics event storage operations
type AnalyticsRepository interface {
	// Append returns ErrDuplicate when event.ID was already recorded.
	Append(ctx context.Context, event models.AnalyticsEvent) error
	List(ctx context.Context, filter AnalyticsFilter) ([]models.AnalyticsEvent, error)
}

// Tx holds the repositories bound to a single unit of work.
type Tx struct {
	Sessions      SessionRepository
	Conversations ConversationRepository
	Messages      MessageRepository
}

// Store gives access to the chat repositories and transactional grouping.
type Store interface {
	Sessions() SessionRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	// WithTx runs fn inside one transaction, rolled back if fn returns an error.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
