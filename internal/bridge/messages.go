// Package bridge implements the typed message protocol spoken between the
// storefront page and the chat iframe, and its websocket relay.
package bridge

import (
	"encoding/json"

	"github.com/shopchat/shopchat-backend/internal/models"
)

// Type is the envelope discriminator.
type Type string

// Messages handled by the iframe.
const (
	TypeInit                  Type = "init"
	TypeConversationsResponse Type = "conversations-response"
	TypeConversationResponse  Type = "conversation-response"
	TypeChatResponse          Type = "chat-response"
	TypeChatError             Type = "chat-error"
	TypeAddToCartSuccess      Type = "add-to-cart-success"
	TypeAddToCartError        Type = "add-to-cart-error"
)

// Messages handled by the storefront page.
const (
	TypeRequestSessionData  Type = "REQUEST_SESSION_DATA"
	TypeSendChatMessage     Type = "send-chat-message"
	TypeAddToCart           Type = "add-to-cart"
	TypeNavigateToProduct   Type = "navigate-to-product"
	TypeGetAllConversations Type = "get-all-conversations"
	TypeGetConversation     Type = "get-conversation"
)

// Message is implemented by every envelope payload. The set is closed.
type Message interface {
	Type() Type
	isMessage()
}

// Request marks payloads sent from the iframe to the page.
type Request interface {
	Message
	isRequest()
}

// ShopContext is what the storefront knows about the visitor.
type ShopContext struct {
	Shop       string `json:"shop,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Locale     string `json:"locale,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
}

type Init struct {
	SessionID string      `json:"sessionId"`
	Source    string      `json:"source,omitempty"`
	Degraded  bool        `json:"degraded,omitempty"`
	Context   ShopContext `json:"shopifyContext"`
}

type ConversationsResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

type ConversationResponse struct {
	ConversationID string           `json:"conversationId"`
	Messages       []models.Message `json:"messages"`
}

type ChatResponse struct {
	ConversationID string       `json:"conversationId,omitempty"`
	Message        string       `json:"message"`
	Cards          models.Cards `json:"cards,omitempty"`
	Fallback       bool         `json:"fallback,omitempty"`
}

type ChatError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type AddToCartSuccess struct {
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Cart      json.RawMessage `json:"cart,omitempty"`
}

type AddToCartError struct {
	VariantID string `json:"variantId,omitempty"`
	Error     string `json:"error"`
}

type RequestSessionData struct{}

type SendChatMessage struct {
	SessionID      string `json:"sessionId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	MessageType    string `json:"messageType,omitempty"`
	AudioURL       string `json:"audioUrl,omitempty"`
}

type AddToCart struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type NavigateToProduct struct {
	URL    string `json:"url,omitempty"`
	Handle string `json:"handle,omitempty"`
}

type GetAllConversations struct {
	SessionID string `json:"sessionId,omitempty"`
}

type GetConversation struct {
	SessionID      string `json:"sessionId,omitempty"`
	ConversationID string `json:"conversationId"`
}

func (Init) Type() Type                  { return TypeInit }
func (ConversationsResponse) Type() Type { return TypeConversationsResponse }
func (ConversationResponse) Type() Type  { return TypeConversationResponse }
func (ChatResponse) Type() Type          { return TypeChatResponse }
func (ChatError) Type() Type             { return TypeChatError }
func (AddToCartSuccess) Type() Type      { return TypeAddToCartSuccess }
func (AddToCartError) Type() Type        { return TypeAddToCartError }
func (RequestSessionData) Type() Type    { return TypeRequestSessionData }
func (SendChatMessage) Type() Type       { return TypeSendChatMessage }
func (AddToCart) Type() Type             { return TypeAddToCart }
func (NavigateToProduct) Type() Type     { return TypeNavigateToProduct }
func (GetAllConversations) Type() Type   { return TypeGetAllConversations }
func (GetConversation) Type() Type       { return TypeGetConversation }

func (Init) isMessage()                  {}
func (ConversationsResponse) isMessage() {}
func (ConversationResponse) isMessage()  {}
func (ChatResponse) isMessage()          {}
func (ChatError) isMessage()             {}
func (AddToCartSuccess) isMessage()      {}
func (AddToCartError) isMessage()        {}
func (RequestSessionData) isMessage()    {}
func (SendChatMessage) isMessage()       {}
func (AddToCart) isMessage()             {}
func (NavigateToProduct) isMessage()     {}
func (GetAllConversations) isMessage()   {}
func (GetConversation) isMessage()       {}

func (RequestSessionData) isRequest()  {}
func (SendChatMessage) isRequest()     {}
func (AddToCart) isRequest()           {}
func (NavigateToProduct) isRequest()   {}
func (GetAllConversations) isRequest() {}
func (GetConversation) isRequest()     {}

// decoders maps each known type to a function filling a fresh value.
var decoders = map[Type]func([]byte) (Message, error){
	TypeInit:                  decodeInto[Init],
	TypeConversationsResponse: decodeInto[ConversationsResponse],
	TypeConversationResponse:  decodeInto[ConversationResponse],
	TypeChatResponse:          decodeInto[ChatResponse],
	TypeChatError:             decodeInto[ChatError],
	TypeAddToCartSuccess:      decodeInto[AddToCartSuccess],
	TypeAddToCartError:        decodeInto[AddToCartError],
	TypeRequestSessionData:    decodeInto[RequestSessionData],
	TypeSendChatMessage:       decodeInto[SendChatMessage],
	TypeAddToCart:             decodeInto[AddToCart],
	TypeNavigateToProduct:     decodeInto[NavigateToProduct],
	TypeGetAllConversations:   decodeInto[GetAllConversations],
	TypeGetConversation:       decodeInto[GetConversation],
}

func decodeInto[T Message](data []byte) (Message, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
