package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB type for JSON columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	raw, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	if len(raw) == 0 {
		*j = make(JSONB)
		return nil
	}
	return json.Unmarshal(raw, j)
}

// Cards holds a serialized product-card array. Empty and JSON null are both
// treated as absent, so a missing payload never round-trips as the string "null".
type Cards []byte

// NewCards marshals v into Cards. A nil v yields nil Cards.
func NewCards(v interface{}) (Cards, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c := Cards(b)
	if c.IsEmpty() {
		return nil, nil
	}
	return c, nil
}

// IsEmpty reports whether the payload carries no cards.
func (c Cards) IsEmpty() bool {
	t := bytes.TrimSpace(c)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`"null"`))
}

// Value stores absent cards as SQL NULL.
func (c Cards) Value() (driver.Value, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	return string(c), nil
}

// Scan implements sql.Scanner for Cards
func (c *Cards) Scan(value interface{}) error {
	raw, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into Cards", value)
	}
	if Cards(raw).IsEmpty() {
		*c = nil
		return nil
	}
	*c = append(Cards(nil), raw...)
	return nil
}

// MarshalJSON emits the raw array.
func (c Cards) MarshalJSON() ([]byte, error) {
	if c.IsEmpty() {
		return []byte("null"), nil
	}
	return []byte(c), nil
}

// UnmarshalJSON keeps the raw payload, dropping JSON null.
func (c *Cards) UnmarshalJSON(data []byte) error {
	if Cards(data).IsEmpty() {
		*c = nil
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("cards: invalid JSON")
	}
	*c = append(Cards(nil), data...)
	return nil
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
