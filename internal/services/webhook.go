package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/automation"
	"github.com/shopchat/shopchat-backend/internal/config"
)

// ProxyResult is the status and JSON body the proxy answers with.
type ProxyResult struct {
	Status int
	Body   map[string]interface{}
}

// WebhookService forwards widget requests to the automation workflows
type WebhookService struct {
	client *automation.Client
	cfg    config.WebhookConfig
	allow  map[string]bool
	logger *logrus.Logger
}

// NewWebhookService creates a new webhook proxy service
func NewWebhookService(client *automation.Client, cfg config.WebhookConfig, logger *logrus.Logger) *WebhookService {
	if logger == nil {
		logger = logrus.New()
	}
	allow := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		allow[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &WebhookService{client: client, cfg: cfg, allow: allow, logger: logger}
}

// ChatURL is the default chat workflow endpoint.
func (s *WebhookService) ChatURL() string {
	return s.cfg.ChatURL
}

// IsConversationSave reports whether body is a conversation-creation event.
func IsConversationSave(body map[string]interface{}) bool {
	return stringField(body, "event_type") == "conversation_created" ||
		stringField(body, "action") == "save_conversation"
}

// Proxy validates body and forwards it to the save-conversation workflow or
// to the chat workflow named by webhookUrl.
func (s *WebhookService) Proxy(ctx context.Context, body map[string]interface{}) (ProxyResult, error) {
	sessionID := stringField(body, "session_id")
	if sessionID == "" {
		return ProxyResult{}, invalid(MsgSessionRequired)
	}

	if IsConversationSave(body) {
		return s.saveConversation(ctx, sessionID, body)
	}

	target := stringField(body, "webhookUrl", "webhook_url")
	if target == "" {
		return ProxyResult{}, invalid(MsgWebhookURLRequired)
	}
	if !s.HostAllowed(target) {
		return ProxyResult{}, invalid(MsgWebhookHostNotAllowed)
	}

	reply, fallback := s.Chat(ctx, target, body)
	out := map[string]interface{}{"message": reply.Message}
	if !reply.Cards.IsEmpty() {
		out["cards"] = reply.Cards
	}
	if fallback {
		out["fallback"] = true
	}
	return ProxyResult{Status: http.StatusOK, Body: out}, nil
}

// Chat calls the chat workflow. Any failure is downgraded to the apology
// reply with fallback set, so callers always have something to show.
func (s *WebhookService) Chat(ctx context.Context, target string, payload interface{}) (automation.Reply, bool) {
	resp, err := s.client.Post(ctx, target, payload)
	if err != nil {
		s.logger.WithError(err).WithField("webhook_url", target).Warn("chat webhook failed, answering with apology")
		return automation.Reply{Message: automation.ApologyMessage}, true
	}
	return automation.ParseReply(resp.Body), false
}

func (s *WebhookService) saveConversation(ctx context.Context, sessionID string, body map[string]interface{}) (ProxyResult, error) {
	conversationID := stringField(body, "conversation_id")
	if conversationID == "" {
		return ProxyResult{}, invalid(MsgConversationRequired)
	}

	log := s.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"conversation_id": conversationID,
		"webhook_url":     s.cfg.SaveConversationURL,
	})

	resp, err := s.client.Post(ctx, s.cfg.SaveConversationURL, body)
	if err != nil {
		var upstream *automation.UpstreamError
		if errors.As(err, &upstream) {
			log.WithField("status", upstream.Status).Warn("save-conversation webhook rejected the request")
			return ProxyResult{Status: http.StatusBadGateway, Body: map[string]interface{}{
				"error":   "Failed to save conversation",
				"status":  upstream.Status,
				"details": upstream.Body,
			}}, nil
		}
		log.WithError(err).Warn("save-conversation webhook unreachable")
		return ProxyResult{Status: http.StatusServiceUnavailable, Body: map[string]interface{}{
			"error":   "Conversation service unavailable",
			"details": err.Error(),
		}}, nil
	}

	return ProxyResult{Status: http.StatusOK, Body: map[string]interface{}{
		"success":         true,
		"conversation_id": conversationID,
		"response":        decodeLoose(resp.Body),
	}}, nil
}

// HostAllowed reports whether target is an http(s) URL permitted by
// webhook.allowed_hosts. An empty allow-list permits any host.
func (s *WebhookService) HostAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if len(s.allow) == 0 {
		return true
	}
	return s.allow[strings.ToLower(u.Hostname())]
}

// decodeLoose returns the body as JSON when it parses, else as text.
func decodeLoose(body []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(body))
}

func stringField(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
