package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shopchat/shopchat-backend/internal/repository"
)

// Store implements repository.Store on a sqlx connection pool
type Store struct {
	db *sqlx.DB

	sessions      repository.SessionRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

// NewStore creates a new PostgreSQL-backed store
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:            db,
		sessions:      NewSessionRepository(db),
		conversations: NewConversationRepository(db),
		messages:      NewMessageRepository(db),
	}
}

func (s *Store) Sessions() repository.SessionRepository           { return s.sessions }
func (s *Store) Conversations() repository.ConversationRepository { return s.conversations }
func (s *Store) Messages() repository.MessageRepository           { return s.messages }

// WithTx runs fn against repositories bound to a single transaction
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	repos := repository.Tx{
		Sessions:      NewSessionRepository(tx),
		Conversations: NewConversationRepository(tx),
		Messages:      NewMessageRepository(tx),
	}

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
