package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:8080/chat"})
	// anonymous guests get a generated display name, like the chat UI does
	assert.Regexp(t, `^Guest\d+$`, s.View().DisplayName())
	assert.Equal(t, Disconnected, s.View().Status())
}

func TestSendRequiresConnection(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:8080/chat", DisplayName: "alice"})
	assert.ErrorIs(t, s.Send("hello"), ErrNotConnected)

	// an empty composer is a no-op, not an error
	s.View().SetComposer("")
	assert.NoError(t, s.SendComposer())

	// a non-empty composer still needs a connection, and is not cleared
	s.View().SetComposer("draft")
	assert.ErrorIs(t, s.SendComposer(), ErrNotConnected)
	assert.Equal(t, "draft", s.View().Composer())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSession(Config{URL: "ws://localhost:8080/chat"})
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, Disconnected, s.View().Status())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
}
