package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCards_NullIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{name: "sql null", raw: nil},
		{name: "json null bytes", raw: []byte("null")},
		{name: "quoted null string", raw: `"null"`},
		{name: "empty", raw: []byte("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cards
			require.NoError(t, c.Scan(tt.raw))
			assert.Nil(t, c)

			v, err := c.Value()
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestCards_OmittedFromMessageJSON(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"content":"hi","cards":null}`), &msg))
	assert.Nil(t, msg.Cards)

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "cards")
}

func TestCards_PreservesPayload(t *testing.T) {
	cards, err := NewCards([]map[string]interface{}{{"id": "gid://shopify/Product/1", "title": "Mug", "price": "12.00"}})
	require.NoError(t, err)
	require.NotNil(t, cards)

	v, err := cards.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"gid://shopify/Product/1","title":"Mug","price":"12.00"}]`, v.(string))

	var scanned Cards
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.JSONEq(t, string(cards), string(scanned))

	nilCards, err := NewCards(nil)
	require.NoError(t, err)
	assert.Nil(t, nilCards)
}

func TestJSONB_ScanNull(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan(nil))
	assert.NotNil(t, j)
	assert.Empty(t, j)

	require.NoError(t, j.Scan([]byte(`{"page":"product"}`)))
	assert.Equal(t, "product", j["page"])
}
