package automation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopchat/shopchat-backend/internal/models"
)

// User-facing texts used when the workflow cannot produce an answer.
const (
	PlaceholderMessage = "I received your message, but I don't have a response right now. Please try again."
	ApologyMessage     = "Sorry, I'm having trouble connecting right now. Please try again in a moment."
)

// Reply is the normalised chat answer of the workflow.
type Reply struct {
	Message string       `json:"message"`
	Cards   models.Cards `json:"cards,omitempty"`
}

var messageKeys = []string{"message", "output", "response", "text", "reply"}

var cardKeys = []string{"cards", "products"}

// ParseReply accepts an object, an array whose first element is the answer,
// or a bare JSON string. Empty or unparsable bodies yield PlaceholderMessage.
func ParseReply(body []byte) Reply {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Reply{Message: PlaceholderMessage}
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return Reply{Message: PlaceholderMessage}
	}

	if reply, ok := fromValue(v, 0); ok {
		return reply
	}
	return Reply{Message: PlaceholderMessage}
}

func fromValue(v interface{}, depth int) (Reply, bool) {
	if depth > 2 {
		return Reply{}, false
	}

	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return Reply{Message: s}, true
		}
	case []interface{}:
		if len(t) > 0 {
			return fromValue(t[0], depth+1)
		}
	case map[string]interface{}:
		var reply Reply
		for _, key := range messageKeys {
			raw, ok := t[key]
			if !ok {
				continue
			}
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				reply.Message = strings.TrimSpace(s)
				break
			}
			// n8n agents sometimes nest the answer one level down.
			if nested, ok := fromValue(raw, depth+1); ok {
				reply = nested
				break
			}
		}
		if reply.Cards == nil {
			reply.Cards = cardsFrom(t)
		}
		// A cards-only answer is still an answer.
		if reply.Message != "" || reply.Cards != nil {
			return reply, true
		}
	}
	return Reply{}, false
}

func cardsFrom(obj map[string]interface{}) models.Cards {
	for _, key := range cardKeys {
		list, ok := obj[key].([]interface{})
		if !ok || len(list) == 0 {
			continue
		}
		cards, err := models.NewCards(list)
		if err == nil {
			return cards
		}
	}
	return nil
}
