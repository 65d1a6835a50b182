package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/database"
	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// setupTestStore connects to SHOPCHAT_TEST_DATABASE_URL and applies migrations.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("SHOPCHAT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SHOPCHAT_TEST_DATABASE_URL not set")
	}

	cfg := config.DatabaseConfig{Driver: "postgres", URL: url}
	require.NoError(t, database.RunMigrations(cfg))

	db, err := database.NewConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db.DB)
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestSessionRepository_UpsertIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	id := uniqueID("s")

	first, err := store.Sessions().Upsert(ctx, models.Session{SessionID: id})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second, err := store.Sessions().Upsert(ctx, models.Session{SessionID: id})
	require.NoError(t, err)

	assert.Equal(t, first.StartedAt.Unix(), second.StartedAt.Unix())
	assert.True(t, second.LastActivity.After(first.LastActivity))

	var count int
	require.NoError(t, store.db.GetContext(ctx, &count, "SELECT count(*) FROM user_sessions WHERE session_id = $1", id))
	assert.Equal(t, 1, count)
}

func TestMessageRepository_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessionID := uniqueID("s")
	conversationID := "conv_" + sessionID

	err := store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Sessions.Upsert(ctx, models.Session{SessionID: sessionID}); err != nil {
			return err
		}
		if _, err := tx.Conversations.Create(ctx, models.Conversation{ConversationID: conversationID, SessionID: sessionID}); err != nil {
			return err
		}
		cards, _ := models.NewCards([]map[string]string{{"id": "p1"}})
		if _, err := tx.Messages.Create(ctx, models.Message{
			ConversationID: conversationID, SessionID: sessionID, Content: "hi", Role: models.RoleUser, Cards: cards,
		}); err != nil {
			return err
		}
		_, err := tx.Messages.Create(ctx, models.Message{
			ConversationID: conversationID, SessionID: sessionID, Content: "hello", Role: models.RoleWebhook,
			Timestamp: time.Now().Add(time.Second),
		})
		return err
	})
	require.NoError(t, err)

	messages, err := store.Messages().ListByConversation(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
	assert.JSONEq(t, `[{"id":"p1"}]`, string(messages[0].Cards))
	assert.Nil(t, messages[1].Cards)
	assert.Equal(t, models.TypeText, messages[1].Type)

	conversation, err := store.Conversations().Get(ctx, conversationID)
	require.NoError(t, err)
	require.NotNil(t, conversation.LastUserMessage)
	assert.Equal(t, "hi", *conversation.LastUserMessage)

	deleted, err := store.Messages().DeleteByConversation(ctx, conversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessionID := uniqueID("s")

	err := store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Sessions.Upsert(ctx, models.Session{SessionID: sessionID}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = store.Sessions().Get(ctx, sessionID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
