package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopchat/shopchat-backend/internal/automation"
	"github.com/shopchat/shopchat-backend/internal/config"
	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
	"github.com/shopchat/shopchat-backend/internal/repository/memory"
	"github.com/shopchat/shopchat-backend/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{
			ChatURL:             "http://127.0.0.1:1/chat",
			SaveConversationURL: "http://127.0.0.1:1/save",
			Timeout:             2 * time.Second,
		},
		Bridge: config.BridgeConfig{
			AllowedOrigins: []string{"https://demo.myshopify.com"},
			RequestTimeout: time.Second,
		},
		Analytics: config.AnalyticsConfig{Store: "memory", MaxEvents: 100},
	}
}

func newTestApp(t *testing.T, store repository.Store, cfg *config.Config) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if store == nil {
		store = memory.NewStore()
	}
	if cfg == nil {
		cfg = testConfig()
	}
	client := automation.NewClient(cfg.Webhook.Timeout, logger)
	svc := services.NewServices(cfg, store, memory.NewAnalyticsStore(cfg.Analytics.MaxEvents), client, logger)
	return NewApp(svc, AppOptions{})
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 {
		out["_raw"] = string(raw)
	}
	return resp, out
}

type failingListing struct {
	*memory.Store
}

func (f failingListing) Conversations() repository.ConversationRepository {
	return failingConversations{f.Store.Conversations()}
}

type failingConversations struct {
	repository.ConversationRepository
}

func (failingConversations) ListBySession(context.Context, string) ([]models.Conversation, error) {
	return nil, errors.New("connection reset")
}

func TestListConversations_RequiresSession(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/conversations", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "session_id is required", body["error"])
}

func TestGetConversation_RequiresBothIDs(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/conversations/conv_1", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.MsgSessionConversationRequired, body["error"])
}

func TestSaveMessageThenRead(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/messages/save",
		`{"session_id":"s1","conversation_id":"c1","content":"Hello","role":"user","cards":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	msg, ok := body["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "c1", msg["conversation_id"])
	assert.Equal(t, "text", msg["type"])
	assert.NotContains(t, msg, "cards")

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1?session_id=s1", nil)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var history []map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "Hello", history[0]["content"])
	assert.NotContains(t, history[0], "cards")

	req = httptest.NewRequest(http.MethodGet, "/api/conversations?session_id=s1", nil)
	res, err = app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0]["conversation_id"])
	assert.Equal(t, "Hello", list[0]["name"])
}

func TestGetConversation_OwnershipAndMissing(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/messages/save",
		`{"session_id":"owner","conversation_id":"c1","content":"hi","role":"user"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/api/conversations/c1?session_id=intruder", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/conversations/nope?session_id=owner", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Conversation not found", body["error"])
}

func TestSaveMessage_InvalidBody(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/messages/save", `{"session_id":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestListConversations_DegradesOnStoreFailure(t *testing.T) {
	app := newTestApp(t, failingListing{memory.NewStore()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?session_id=s1", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestDeleteConversation(t *testing.T) {
	app := newTestApp(t, nil, nil)

	for _, content := range []string{"one", "two"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/messages/save",
			`{"session_id":"s1","conversation_id":"c1","content":"`+content+`","role":"user"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodDelete, "/api/conversations/c1?session_id=s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["deleted"])
}

func TestSessions(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/sessions?session_id=s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["exists"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/sessions", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "provided", body["source"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/sessions?session_id=s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["exists"])
}

func TestUpsertSession_DerivesFromCookie(t *testing.T) {
	app := newTestApp(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "_shopify_y", Value: "abc123"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Source  string         `json:"source"`
		Session models.Session `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cookie", body.Source)
	assert.Contains(t, body.Session.SessionID, "abc123")
}

func TestWebhook_RequiresURL(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/webhook", `{"session_id":"s1","message":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Webhook URL is required", body["error"])
}

func TestWebhook_ForwardsReply(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hi", in["message"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":"Hello there","cards":[{"title":"Mug"}]}`))
	}))
	defer upstream.Close()

	app := newTestApp(t, nil, nil)
	resp, body := doJSON(t, app, http.MethodPost, "/api/webhook",
		`{"session_id":"s1","message":"hi","webhookUrl":"`+upstream.URL+`"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello there", body["message"])
	assert.NotContains(t, body, "fallback")
	cards, ok := body["cards"].([]interface{})
	require.True(t, ok)
	assert.Len(t, cards, 1)
}

func TestWebhook_TimeoutAnswersWithApology(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.Webhook.Timeout = 50 * time.Millisecond
	app := newTestApp(t, nil, cfg)

	resp, body := doJSON(t, app, http.MethodPost, "/api/webhook",
		`{"session_id":"s1","message":"hi","webhookUrl":"`+upstream.URL+`"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, automation.ApologyMessage, body["message"])
	assert.Equal(t, true, body["fallback"])
}

func TestAnalytics_TrackAndList(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/analytics", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.MsgEventRequired, body["error"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/analytics",
		`{"event":"widget_opened","session_id":"s1","properties":{"page":"/"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/analytics?session_id=s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestTestConnection_ReportsUnreachableWebhook(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/api/test-connection", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestRequestID(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/conversations?session_id=s1", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	const id = "8f14e45f-ceea-467f-a0e6-6f6c2b1b0d4e"
	req := httptest.NewRequest(http.MethodGet, "/api/conversations?session_id=s1", nil)
	req.Header.Set("X-Request-ID", id)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, id, res.Header.Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/messages/save", nil)
	req.Header.Set("Origin", "https://any-store.myshopify.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestBridgeUpgrade(t *testing.T) {
	app := newTestApp(t, nil, nil)

	upgrade := func(origin string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/ws/bridge", nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		req.Header.Set("Origin", origin)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := upgrade("https://evil.example")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	plain, body := doJSON(t, app, http.MethodGet, "/ws/bridge", "")
	assert.Equal(t, http.StatusUpgradeRequired, plain.StatusCode)
	assert.Equal(t, plain.Header.Get("X-Request-ID"), body["request_id"])
	assert.NotEmpty(t, body["request_id"])
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })

	resp, body := doJSON(t, app, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotContains(t, body, "request_id")

	resp, body = doJSON(t, app, http.MethodGet, "/teapot", "")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "short and stout", body["error"])
}

func TestSaveMessage_AcceptsEpochMillis(t *testing.T) {
	app := newTestApp(t, nil, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/api/messages/save",
		`{"session_id":"s1","content":"Hello","role":"user","timestamp":1791970200000}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg, ok := body["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2026-10-14T09:30:00Z", msg["timestamp"])
}
