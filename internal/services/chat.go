package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

// DefaultConversationName is shown for conversations with no user message yet.
const DefaultConversationName = "New conversation"

const conversationNameRunes = 50

// ChatService manages sessions, conversations and their messages
type ChatService struct {
	store  repository.Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(store repository.Store, logger *logrus.Logger) *ChatService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MintConversationID builds conv_<session>_<unix-ms>.
func MintConversationID(sessionID string, now time.Time) string {
	return "conv_" + sessionID + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ConversationName picks the stored name, else the latest user message, else the default.
func ConversationName(c models.Conversation) string {
	if c.Name != nil && strings.TrimSpace(*c.Name) != "" {
		return strings.TrimSpace(*c.Name)
	}
	if c.LastUserMessage != nil {
		if msg := strings.TrimSpace(*c.LastUserMessage); msg != "" {
			runes := []rune(msg)
			if len(runes) > conversationNameRunes {
				return string(runes[:conversationNameRunes])
			}
			return msg
		}
	}
	return DefaultConversationName
}

// ListConversations returns the session's conversations, newest first. Store
// failures are logged and answered with an empty list so the widget keeps working.
func (s *ChatService) ListConversations(ctx context.Context, sessionID string) ([]models.ConversationSummary, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalid(MsgSessionRequired)
	}

	conversations, err := s.store.Conversations().ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("failed to list conversations")
		return []models.ConversationSummary{}, nil
	}

	out := make([]models.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, models.ConversationSummary{
			ConversationID: c.ConversationID,
			Name:           ConversationName(c),
			StartedAt:      c.StartedAt,
			EndedAt:        c.EndedAt,
		})
	}
	return out, nil
}

// GetConversationHistory returns the messages of a conversation owned by sessionID.
func (s *ChatService) GetConversationHistory(ctx context.Context, sessionID, conversationID string) ([]models.Message, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(conversationID) == "" {
		return nil, invalid(MsgSessionConversationRequired)
	}

	if _, err := s.ownedConversation(ctx, s.store.Conversations(), sessionID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.store.Messages().ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return messages, nil
}

// SaveMessageInput is a message to append
type SaveMessageInput struct {
	SessionID      string
	ConversationID string
	Content        string
	Role           string
	Type           string
	AudioURL       *string
	Cards          models.Cards
	Timestamp      *time.Time
}

// SaveMessage upserts the session, resolves the conversation and appends the
// message in one transaction. Without a conversation id the message joins the
// session's latest conversation, or a newly minted one.
func (s *ChatService) SaveMessage(ctx context.Context, in SaveMessageInput) (*models.Message, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, invalid(MsgSessionRequired)
	}
	if strings.TrimSpace(in.Content) == "" && in.AudioURL == nil {
		return nil, invalid(MsgContentRequired)
	}
	if !models.IsValidRole(in.Role) {
		return nil, invalid(MsgInvalidRole)
	}
	if in.Type == "" {
		in.Type = models.TypeText
	}
	if !models.IsValidType(in.Type) {
		return nil, invalid(MsgInvalidType)
	}
	if in.Cards.IsEmpty() {
		in.Cards = nil
	}

	now := s.now()
	ts := now
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}

	var saved *models.Message
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Sessions.Upsert(ctx, models.Session{SessionID: in.SessionID}); err != nil {
			return err
		}

		conversationID, err := s.resolveConversation(ctx, tx, in.SessionID, in.ConversationID, now)
		if err != nil {
			return err
		}

		saved, err = tx.Messages.Create(ctx, models.Message{
			ConversationID: conversationID,
			SessionID:      in.SessionID,
			Content:        in.Content,
			Role:           in.Role,
			Type:           in.Type,
			AudioURL:       in.AudioURL,
			Cards:          in.Cards,
			Timestamp:      ts,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":      saved.SessionID,
		"conversation_id": saved.ConversationID,
		"role":            saved.Role,
	}).Debug("message saved")
	return saved, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, tx repository.Tx, sessionID, conversationID string, now time.Time) (string, error) {
	if conversationID != "" {
		conv, err := tx.Conversations.Create(ctx, models.Conversation{
			ConversationID: conversationID,
			SessionID:      sessionID,
			StartedAt:      now,
		})
		if err != nil {
			return "", err
		}
		if conv.SessionID != sessionID {
			return "", ErrForbidden
		}
		return conv.ConversationID, nil
	}

	latest, err := tx.Conversations.Latest(ctx, sessionID)
	if err == nil {
		return latest.ConversationID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	conv, err := tx.Conversations.Create(ctx, models.Conversation{
		ConversationID: MintConversationID(sessionID, now),
		SessionID:      sessionID,
		StartedAt:      now,
	})
	if err != nil {
		return "", err
	}
	return conv.ConversationID, nil
}

// SaveConversationInput registers a conversation
type SaveConversationInput struct {
	SessionID      string
	ConversationID string
	Name           *string
}

// SaveConversation records a conversation, minting its id when absent. Saving
// an existing id returns the stored row.
func (s *ChatService) SaveConversation(ctx context.Context, in SaveConversationInput) (*models.Conversation, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, invalid(MsgSessionRequired)
	}

	now := s.now()
	if in.ConversationID == "" {
		in.ConversationID = MintConversationID(in.SessionID, now)
	}

	var conv *models.Conversation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Sessions.Upsert(ctx, models.Session{SessionID: in.SessionID}); err != nil {
			return err
		}
		var err error
		conv, err = tx.Conversations.Create(ctx, models.Conversation{
			ConversationID: in.ConversationID,
			SessionID:      in.SessionID,
			Name:           in.Name,
			StartedAt:      now,
		})
		if err != nil {
			return err
		}
		if conv.SessionID != in.SessionID {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// DeleteConversation removes every message of a conversation owned by sessionID.
func (s *ChatService) DeleteConversation(ctx context.Context, sessionID, conversationID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(conversationID) == "" {
		return 0, invalid(MsgSessionConversationRequired)
	}

	var deleted int64
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := s.ownedConversation(ctx, tx.Conversations, sessionID, conversationID); err != nil {
			return err
		}
		var err error
		deleted, err = tx.Messages.DeleteByConversation(ctx, conversationID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"conversation_id": conversationID,
		"deleted":         deleted,
	}).Info("conversation messages deleted")
	return deleted, nil
}

// GetSession looks a session up. A missing session is not an error.
func (s *ChatService) GetSession(ctx context.Context, sessionID string) (*models.Session, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, invalid(MsgSessionRequired)
	}
	session, err := s.store.Sessions().Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// UpsertSession creates the session or refreshes its activity timestamps.
func (s *ChatService) UpsertSession(ctx context.Context, sessionID string, name *string) (*models.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalid(MsgSessionRequired)
	}
	return s.store.Sessions().Upsert(ctx, models.Session{SessionID: sessionID, Name: name})
}

// SessionHistory returns every message of a session across its conversations.
func (s *ChatService) SessionHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalid(MsgSessionRequired)
	}
	messages, err := s.store.Messages().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return messages, nil
}

// Ping checks the store.
func (s *ChatService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ChatService) ownedConversation(ctx context.Context, repo repository.ConversationRepository, sessionID, conversationID string) (*models.Conversation, error) {
	conv, err := repo.Get(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv.SessionID != sessionID {
		return nil, ErrForbidden
	}
	return conv, nil
}
