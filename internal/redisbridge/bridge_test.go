package redisbridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBridge(deliver func([]byte)) *Bridge {
	return New(nil, "chat.broadcast", deliver, zap.NewNop().Sugar())
}

func TestHandlePayloadDeliversRemoteFrames(t *testing.T) {
	var got [][]byte
	b := newTestBridge(func(frame []byte) { got = append(got, frame) })

	env, err := json.Marshal(envelope{Src: "other-instance", Frame: json.RawMessage(`{"message":"hi"}`)})
	require.NoError(t, err)
	b.handlePayload(string(env))

	require.Len(t, got, 1)
	assert.JSONEq(t, `{"message":"hi"}`, string(got[0]))
}

func TestHandlePayloadSkipsOwnTraffic(t *testing.T) {
	delivered := false
	b := newTestBridge(func([]byte) { delivered = true })

	env, err := json.Marshal(envelope{Src: b.instanceID, Frame: json.RawMessage(`{}`)})
	require.NoError(t, err)
	b.handlePayload(string(env))

	assert.False(t, delivered, "an instance must not re-deliver its own frames")
}

func TestHandlePayloadDropsGarbage(t *testing.T) {
	delivered := false
	b := newTestBridge(func([]byte) { delivered = true })
	b.handlePayload("{not an envelope")
	assert.False(t, delivered)
}
