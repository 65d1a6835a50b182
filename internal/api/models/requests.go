package models

import (
	"github.com/shopchat/shopchat-backend/internal/models"
)

// SaveMessageRequest is the body of POST /api/messages/save
type SaveMessageRequest struct {
	SessionID      string       `json:"session_id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Content        string       `json:"content"`
	Role           string       `json:"role"`
	Type           string       `json:"type,omitempty"`
	AudioURL       *string      `json:"audioUrl,omitempty"`
	Cards          models.Cards `json:"cards,omitempty"`
	Timestamp      *Timestamp   `json:"timestamp,omitempty"`
}

// SaveConversationRequest is the body of POST /api/conversations/save
type SaveConversationRequest struct {
	SessionID      string  `json:"session_id"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Name           *string `json:"name,omitempty"`
}

// SessionRequest is the body of POST /api/sessions. Without a session id
// one is derived from the visitor's cookies and headers.
type SessionRequest struct {
	SessionID  string  `json:"session_id,omitempty"`
	Name       *string `json:"name,omitempty"`
	Shop       string  `json:"shop,omitempty"`
	ScreenSize string  `json:"screen_size,omitempty"`
}

// AnalyticsRequest is the body of POST /api/analytics
type AnalyticsRequest struct {
	ID         string                 `json:"id,omitempty"`
	Event      string                 `json:"event"`
	SessionID  string                 `json:"session_id,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  *Timestamp             `json:"timestamp,omitempty"`
}

// TestWebhooksRequest optionally overrides the webhooks to ping
type TestWebhooksRequest struct {
	URLs []string `json:"urls,omitempty"`
}
