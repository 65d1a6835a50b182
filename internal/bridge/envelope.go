package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned by Decode for a type outside the protocol.
	// Receivers log and ignore such envelopes.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned for frames that are not a JSON object with a type.
	ErrMalformed = errors.New("malformed envelope")
)

// Envelope is a message plus its correlation id. Replies reuse the id of the
// request they answer; unsolicited messages carry an empty id.
type Envelope struct {
	ID      string
	Message Message
}

type header struct {
	Type Type   `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Encode renders env in the flat wire form {"type": ..., "id": ..., ...payload}.
func Encode(env Envelope) ([]byte, error) {
	if env.Message == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	body, err := json.Marshal(env.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", env.Message.Type(), err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%s payload is not an object: %w", env.Message.Type(), err)
	}

	typ, _ := json.Marshal(env.Message.Type())
	fields["type"] = typ
	if env.ID != "" {
		id, _ := json.Marshal(env.ID)
		fields["id"] = id
	}
	return json.Marshal(fields)
}

// Decode parses a wire frame into its typed message.
func Decode(data []byte) (Envelope, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if h.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	decode, ok := decoders[h.Type]
	if !ok {
		return Envelope{ID: h.ID}, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	msg, err := decode(data)
	if err != nil {
		return Envelope{ID: h.ID}, fmt.Errorf("%w: %s: %v", ErrMalformed, h.Type, err)
	}
	return Envelope{ID: h.ID, Message: msg}, nil
}
