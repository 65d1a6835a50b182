package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	want := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
	}{
		{"rfc3339", `{"timestamp":"2026-10-14T09:30:00Z"}`},
		{"rfc3339 offset", `{"timestamp":"2026-10-14T11:30:00+02:00"}`},
		{"epoch ms", `{"timestamp":1791970200000}`},
		{"epoch ms string", `{"timestamp":"1791970200000"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SaveMessageRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			require.NotNil(t, req.Timestamp.Ptr())
			assert.True(t, want.Equal(*req.Timestamp.Ptr()))
		})
	}
}

func TestTimestamp_Absent(t *testing.T) {
	for _, body := range []string{`{}`, `{"timestamp":null}`, `{"timestamp":""}`} {
		var req AnalyticsRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.Nil(t, req.Timestamp.Ptr(), body)
	}
}

func TestTimestamp_Rejects(t *testing.T) {
	var req SaveMessageRequest
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":true}`), &req))
}
