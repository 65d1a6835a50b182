package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopchat/shopchat-backend/internal/repository/memory"
)

func TestAnalyticsService_Track(t *testing.T) {
	store := memory.NewAnalyticsStore(0)
	svc := NewAnalyticsService(store, quietLogger())
	ctx := context.Background()

	_, err := svc.Track(ctx, TrackInput{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrValidation)

	skipped, err := svc.Track(ctx, TrackInput{Event: "chat_opened", SessionID: "fallback-1735689600000-abc123xyz"})
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, 0, store.Len())

	skipped, err = svc.Track(ctx, TrackInput{ID: "evt-1", Event: "chat_opened", SessionID: "s1", Properties: map[string]interface{}{"page": "/"}})
	require.NoError(t, err)
	assert.False(t, skipped)

	// A retried event is accepted once.
	_, err = svc.Track(ctx, TrackInput{ID: "evt-1", Event: "chat_opened", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	events, err := svc.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "chat_opened", events[0].Event)
	assert.Equal(t, "/", events[0].Properties["page"])
}
