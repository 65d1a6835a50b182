package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopchat/shopchat-backend/internal/automation"
	"github.com/shopchat/shopchat-backend/internal/bridge"
	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/identity"
	"github.com/shopchat/shopchat-backend/internal/repository/memory"
)

func TestBridgeService_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Our mugs hold 350ml","cards":[{"id":"mug"}]}`))
	}))
	defer srv.Close()

	store := memory.NewStore()
	chat := NewChatService(store, quietLogger())
	webhook := NewWebhookService(automation.NewClient(time.Second, quietLogger()), config.WebhookConfig{ChatURL: srv.URL}, quietLogger())
	svc := NewBridgeService(chat, webhook, quietLogger())

	handler := svc.Session(identity.Signals{
		Cookies: map[string]string{"_shopify_y": "abc"},
		Shop:    "demo.myshopify.com",
	}, bridge.ShopContext{Currency: "EUR"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	page, iframe := bridge.Pipe()
	go func() { _ = bridge.NewRouter(handler, time.Second, quietLogger()).Serve(ctx, page) }()
	client := bridge.NewClient(iframe, bridge.ClientOptions{HandshakeInterval: 50 * time.Millisecond}, quietLogger())
	go func() { _ = client.Run(ctx) }()

	id := client.AwaitSession(ctx, time.Second)
	assert.Equal(t, "demo.myshopify.com_abc", id.SessionID)
	assert.Equal(t, identity.SourceCookie, id.Source)

	reply, err := client.Request(ctx, bridge.SendChatMessage{ConversationID: "conv_1", Message: "how big are the mugs?"})
	require.NoError(t, err)
	chatReply, ok := reply.(bridge.ChatResponse)
	require.True(t, ok)
	assert.Equal(t, "Our mugs hold 350ml", chatReply.Message)
	assert.JSONEq(t, `[{"id":"mug"}]`, string(chatReply.Cards))

	reply, err = client.Request(ctx, bridge.GetAllConversations{})
	require.NoError(t, err)
	list := reply.(bridge.ConversationsResponse)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "how big are the mugs?", list.Conversations[0].Name)

	reply, err = client.Request(ctx, bridge.GetConversation{ConversationID: "conv_1"})
	require.NoError(t, err)
	history := reply.(bridge.ConversationResponse)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "webhook", history.Messages[1].Role)

	reply, err = client.Request(ctx, bridge.AddToCart{VariantID: "v1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, bridge.AddToCartError{VariantID: "v1", Error: ErrStorefrontOnly.Error()}, reply)
}

func TestBridgeService_RequiresHandshake(t *testing.T) {
	chat := NewChatService(memory.NewStore(), quietLogger())
	svc := NewBridgeService(chat, nil, quietLogger())
	handler := svc.Session(identity.Signals{}, bridge.ShopContext{})

	_, err := handler.GetAllConversations(context.Background(), bridge.GetAllConversations{})
	assert.ErrorIs(t, err, errNoSession)
}

func TestBridgeSession_SessionDataIsStable(t *testing.T) {
	store := memory.NewStore()
	chat := NewChatService(store, quietLogger())
	svc := NewBridgeService(chat, nil, quietLogger())
	handler := svc.Session(identity.Signals{UserAgent: "UA", Language: "en"}, bridge.ShopContext{})

	first, err := handler.SessionData(context.Background(), bridge.RequestSessionData{})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := handler.SessionData(context.Background(), bridge.RequestSessionData{})
	require.NoError(t, err)

	assert.Equal(t, identity.SourceFingerprint, identity.Source(first.Source))
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestBridgeSession_MessagesWithoutConversationJoinLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	store := memory.NewStore()
	chat := NewChatService(store, quietLogger())
	webhook := NewWebhookService(automation.NewClient(time.Second, quietLogger()), config.WebhookConfig{ChatURL: srv.URL}, quietLogger())
	handler := NewBridgeService(chat, webhook, quietLogger()).Session(identity.Signals{
		Cookies: map[string]string{"_y": "v1"},
	}, bridge.ShopContext{})

	ctx := context.Background()
	_, err := handler.SessionData(ctx, bridge.RequestSessionData{})
	require.NoError(t, err)

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		resp, err := handler.SendChatMessage(ctx, bridge.SendChatMessage{Message: text})
		require.NoError(t, err)
		ids = append(ids, resp.ConversationID)
	}

	list, err := chat.ListConversations(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{list[0].ConversationID, list[0].ConversationID, list[0].ConversationID}, ids)

	history, err := chat.GetConversationHistory(ctx, "v1", list[0].ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 6)
}
