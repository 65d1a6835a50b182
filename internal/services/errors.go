package services

import (
	"errors"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// ValidationError carries the exact message returned to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Client-facing validation messages.
const (
	MsgSessionRequired             = "session_id is required"
	MsgSessionConversationRequired = "session_id and conversation_id are required"
	MsgWebhookURLRequired          = "Webhook URL is required"
	MsgConversationRequired        = "conversation_id is required"
	MsgContentRequired             = "content is required"
	MsgInvalidRole                 = "role must be 'user' or 'webhook'"
	MsgInvalidType                 = "type must be 'text' or 'voice'"
	MsgEventRequired               = "event is required"
	MsgWebhookHostNotAllowed       = "Webhook URL host is not allowed"
)
