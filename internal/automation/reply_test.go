package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantCards   string
	}{
		{name: "object message", body: `{"message":"Hi there"}`, wantMessage: "Hi there"},
		{name: "n8n array output", body: `[{"output":"From agent"}]`, wantMessage: "From agent"},
		{name: "bare string", body: `"plain answer"`, wantMessage: "plain answer"},
		{name: "nested output", body: `{"output":{"message":"deep","cards":[{"id":"1"}]}}`, wantMessage: "deep", wantCards: `[{"id":"1"}]`},
		{name: "cards alongside", body: `{"message":"Look","cards":[{"id":"p1","title":"Mug"}]}`, wantMessage: "Look", wantCards: `[{"id":"p1","title":"Mug"}]`},
		{name: "products alias", body: `{"response":"Here","products":[{"id":"p2"}]}`, wantMessage: "Here", wantCards: `[{"id":"p2"}]`},
		{name: "empty body", body: ``, wantMessage: PlaceholderMessage},
		{name: "whitespace", body: "  \n", wantMessage: PlaceholderMessage},
		{name: "not json", body: `<html>oops</html>`, wantMessage: PlaceholderMessage},
		{name: "object without message", body: `{"ok":true}`, wantMessage: PlaceholderMessage},
		{name: "empty array", body: `[]`, wantMessage: PlaceholderMessage},
		{name: "null cards ignored", body: `{"message":"x","cards":null}`, wantMessage: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply([]byte(tt.body))
			assert.Equal(t, tt.wantMessage, got.Message)
			if tt.wantCards == "" {
				assert.Nil(t, got.Cards)
			} else {
				assert.JSONEq(t, tt.wantCards, string(got.Cards))
			}
		})
	}
}
