package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Inbound
		wantErr error
	}{
		{"valid", Inbound{Sender: "alice", Message: "hi", Timestamp: "2026-08-31T10:00:00Z"}, nil},
		{"no timestamp is fine", Inbound{Sender: "alice", Message: "hi"}, nil},
		{"empty body", Inbound{Sender: "alice", Message: ""}, ErrEmptyBody},
		{"whitespace body", Inbound{Sender: "alice", Message: "   "}, ErrEmptyBody},
		{"missing sender", Inbound{Message: "hi"}, ErrEmptySender},
		{"whitespace sender", Inbound{Sender: "\t ", Message: "hi"}, ErrEmptySender},
		{"oversized body", Inbound{Sender: "a", Message: strings.Repeat("x", MaxBodyBytes+1)}, ErrBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestChatMessageWireShape(t *testing.T) {
	m := ChatMessage{Seq: 7, Sender: "alice", SenderID: "c-1", Message: "hi", Timestamp: "2026-08-31T10:00:00Z"}
	b, err := json.Marshal(&m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	// chat frames carry no type discriminator; they are the default kind
	assert.NotContains(t, raw, "type")
	assert.Equal(t, "alice", raw["sender"])
	assert.Equal(t, "hi", raw["message"])
	// reaction is omitted until set locally
	assert.NotContains(t, raw, "reaction")

	m.Reaction = "🔥"
	b, err = json.Marshal(&m)
	require.NoError(t, err)
	assert.Contains(t, string(b), "reaction")
}

func TestPresenceFrame(t *testing.T) {
	b, err := json.Marshal(NewPresence(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"userCount","count":3}`, string(b))
}
