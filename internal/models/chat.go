package models

import (
	"time"
)

// Message roles and types as persisted in the messages table.
const (
	RoleUser    = "user"
	RoleWebhook = "webhook"

	TypeText  = "text"
	TypeVoice = "voice"
)

// Session is a storefront visitor, keyed by the id the widget derived for it.
type Session struct {
	SessionID    string    `json:"session_id" db:"session_id"`
	Name         *string   `json:"name,omitempty" db:"name"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Conversation is one thread inside a session.
type Conversation struct {
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	SessionID      string     `json:"session_id" db:"session_id"`
	Name           *string    `json:"name,omitempty" db:"name"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	EndedAt        *time.Time `json:"ended_at" db:"ended_at"`

	// LastUserMessage is read-only, filled by listing queries for display names.
	LastUserMessage *string `json:"-" db:"last_user_message"`
}

// ConversationSummary is the listing shape of a conversation.
type ConversationSummary struct {
	ConversationID string     `json:"conversation_id"`
	Name           string     `json:"name"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

// Message is an append-only chat entry.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	Content        string    `json:"content" db:"content"`
	Role           string    `json:"role" db:"role"`
	Type           string    `json:"type" db:"type"`
	AudioURL       *string   `json:"audioUrl,omitempty" db:"audio_url"`
	Cards          Cards     `json:"cards,omitempty" db:"cards"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}

// AnalyticsEvent is a widget interaction event.
type AnalyticsEvent struct {
	ID         string    `json:"id" db:"id"`
	Event      string    `json:"event" db:"event"`
	SessionID  *string   `json:"session_id,omitempty" db:"session_id"`
	Properties JSONB     `json:"properties" db:"properties"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// IsValidRole reports whether role is one of the two message roles.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleWebhook
}

// IsValidType reports whether t is a known message type.
func IsValidType(t string) bool {
	return t == TypeText || t == TypeVoice
}
