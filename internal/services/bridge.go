package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopchat/shopchat-backend/internal/bridge"
	"github.com/shopchat/shopchat-backend/internal/identity"
	"github.com/shopchat/shopchat-backend/internal/models"
)

// ErrStorefrontOnly is returned for actions only the storefront page can
// perform, such as changing the visitor's cart.
var ErrStorefrontOnly = errors.New("this action must be performed by the storefront page")

var errNoSession = errors.New("session not initialised, send REQUEST_SESSION_DATA first")

// BridgeService answers bridge requests arriving over the websocket relay
type BridgeService struct {
	chat    *ChatService
	webhook *WebhookService
	logger  *logrus.Logger
}

// NewBridgeService creates a new bridge service
func NewBridgeService(chat *ChatService, webhook *WebhookService, logger *logrus.Logger) *BridgeService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BridgeService{chat: chat, webhook: webhook, logger: logger}
}

// Session returns the handler for one relay connection. signals come from
// the upgrade request and seed the visitor identity.
func (s *BridgeService) Session(signals identity.Signals, shop bridge.ShopContext) bridge.Handler {
	return &bridgeSession{svc: s, signals: signals, shop: shop}
}

type bridgeSession struct {
	svc     *BridgeService
	signals identity.Signals
	shop    bridge.ShopContext

	mu        sync.Mutex
	sessionID string
	identity  identity.Identity
}

// SessionData derives and stores the visitor identity on the first request.
// Later requests on the same connection, including handshake retries, answer
// with the same identity.
func (b *bridgeSession) SessionData(ctx context.Context, req bridge.RequestSessionData) (bridge.Init, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.identity
	if id.SessionID == "" {
		id = identity.Derive(b.signals, time.Now())
		if _, err := b.svc.chat.UpsertSession(ctx, id.SessionID, nil); err != nil {
			return bridge.Init{}, err
		}
		b.identity = id
		b.sessionID = id.SessionID
	}

	shop := b.shop
	if shop.Shop == "" {
		shop.Shop = id.Shop
	}
	return bridge.Init{SessionID: id.SessionID, Source: string(id.Source), Context: shop}, nil
}

func (b *bridgeSession) SendChatMessage(ctx context.Context, req bridge.SendChatMessage) (bridge.ChatResponse, error) {
	sessionID, err := b.session(req.SessionID)
	if err != nil {
		return bridge.ChatResponse{}, err
	}
	if strings.TrimSpace(req.Message) == "" && req.AudioURL == "" {
		return bridge.ChatResponse{}, invalid(MsgContentRequired)
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}

	user := SaveMessageInput{
		SessionID:      sessionID,
		ConversationID: req.ConversationID,
		Content:        req.Message,
		Role:           models.RoleUser,
		Type:           msgType,
	}
	if req.AudioURL != "" {
		audio := req.AudioURL
		user.AudioURL = &audio
	}
	// Without an explicit id the message joins the latest conversation, the
	// same rule the HTTP save route applies.
	conversationID := req.ConversationID
	saved, err := b.svc.chat.SaveMessage(ctx, user)
	switch {
	case err == nil:
		conversationID = saved.ConversationID
	case errors.Is(err, ErrForbidden) || errors.Is(err, ErrValidation):
		return bridge.ChatResponse{}, err
	default:
		// The reply is still worth fetching when only persistence failed.
		if conversationID == "" {
			conversationID = MintConversationID(sessionID, time.Now())
		}
		b.svc.logger.WithError(err).WithField("session_id", sessionID).Error("failed to save user message")
	}

	log := b.svc.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"conversation_id": conversationID,
	})

	reply, fallback := b.svc.webhook.Chat(ctx, b.svc.webhook.ChatURL(), map[string]interface{}{
		"session_id":      sessionID,
		"conversation_id": conversationID,
		"message":         req.Message,
		"type":            msgType,
		"audioUrl":        req.AudioURL,
		"shop":            b.shop.Shop,
	})

	if !fallback {
		if _, err := b.svc.chat.SaveMessage(ctx, SaveMessageInput{
			SessionID:      sessionID,
			ConversationID: conversationID,
			Content:        reply.Message,
			Role:           models.RoleWebhook,
			Type:           models.TypeText,
			Cards:          reply.Cards,
		}); err != nil {
			log.WithError(err).Error("failed to save webhook reply")
		}
	}

	return bridge.ChatResponse{
		ConversationID: conversationID,
		Message:        reply.Message,
		Cards:          reply.Cards,
		Fallback:       fallback,
	}, nil
}

func (b *bridgeSession) AddToCart(ctx context.Context, req bridge.AddToCart) (bridge.AddToCartSuccess, error) {
	return bridge.AddToCartSuccess{}, ErrStorefrontOnly
}

func (b *bridgeSession) NavigateToProduct(ctx context.Context, req bridge.NavigateToProduct) error {
	b.svc.logger.WithFields(logrus.Fields{
		"url":    req.URL,
		"handle": req.Handle,
	}).Debug("navigate-to-product ignored by relay")
	return nil
}

func (b *bridgeSession) GetAllConversations(ctx context.Context, req bridge.GetAllConversations) (bridge.ConversationsResponse, error) {
	sessionID, err := b.session(req.SessionID)
	if err != nil {
		return bridge.ConversationsResponse{}, err
	}
	list, err := b.svc.chat.ListConversations(ctx, sessionID)
	if err != nil {
		return bridge.ConversationsResponse{}, err
	}
	return bridge.ConversationsResponse{Conversations: list}, nil
}

func (b *bridgeSession) GetConversation(ctx context.Context, req bridge.GetConversation) (bridge.ConversationResponse, error) {
	sessionID, err := b.session(req.SessionID)
	if err != nil {
		return bridge.ConversationResponse{}, err
	}
	messages, err := b.svc.chat.GetConversationHistory(ctx, sessionID, req.ConversationID)
	if err != nil {
		return bridge.ConversationResponse{}, err
	}
	return bridge.ConversationResponse{ConversationID: req.ConversationID, Messages: messages}, nil
}

// session picks the explicit id, else the one established by the handshake.
func (b *bridgeSession) session(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessionID == "" {
		return "", errNoSession
	}
	return b.sessionID, nil
}
