package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SamuelRobart/church-chat-service/internal/model"
	"github.com/SamuelRobart/church-chat-service/internal/store"
	"github.com/SamuelRobart/church-chat-service/internal/ws"
	chatclient "github.com/SamuelRobart/church-chat-service/pkg/client"
)

func startServer(t *testing.T) string {
	return startServerWith(t, store.NewMemoryStore(0), ws.HandlerConfig{})
}

func startServerWith(t *testing.T, st store.Store, cfg ws.HandlerConfig) string {
	t.Helper()
	log := zap.NewNop().Sugar()
	hub := ws.NewHub(st, nil, log)
	handler := ws.NewHandler(hub, cfg, log)
	app := NewServer(handler, st, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/chat", addr)
	var lastErr error
	for i := 0; i < 50; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
			return conn
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", url, lastErr)
	return nil
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func sendFrame(t *testing.T, conn *websocket.Conn, sender, body, ts string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(model.Inbound{Sender: sender, Message: body, Timestamp: ts}))
}

// Exercises the full connect/exchange/disconnect flow across three
// connections: echo to the sender, fan-out to peers, history replay for a
// late joiner and presence updates as connections come and go.
func TestChatRoundTrip(t *testing.T) {
	addr := startServer(t)

	a := dial(t, addr)
	welcomeA := readFrame(t, a)
	assert.Equal(t, model.TypeWelcome, welcomeA["type"])
	aID, _ := welcomeA["id"].(string)
	require.NotEmpty(t, aID)
	assert.EqualValues(t, 1, readFrame(t, a)["count"])

	b := dial(t, addr)
	assert.Equal(t, model.TypeWelcome, readFrame(t, b)["type"])
	assert.EqualValues(t, 2, readFrame(t, b)["count"])
	assert.EqualValues(t, 2, readFrame(t, a)["count"])

	sendFrame(t, a, "alice", "hi", "2026-08-31T10:00:00Z")
	for _, conn := range []*websocket.Conn{a, b} {
		got := readFrame(t, conn)
		assert.Equal(t, "alice", got["sender"])
		assert.Equal(t, "hi", got["message"])
		assert.Equal(t, "2026-08-31T10:00:00Z", got["timestamp"])
		assert.Equal(t, aID, got["senderId"])
	}

	// a late joiner replays exactly the history, then the presence update
	c := dial(t, addr)
	assert.Equal(t, model.TypeWelcome, readFrame(t, c)["type"])
	replayed := readFrame(t, c)
	assert.Equal(t, "hi", replayed["message"])
	assert.EqualValues(t, 3, readFrame(t, c)["count"])
	assert.EqualValues(t, 3, readFrame(t, a)["count"])
	assert.EqualValues(t, 3, readFrame(t, b)["count"])

	// malformed sends never surface anywhere; the next valid one does
	sendFrame(t, a, "alice", "", "2026-08-31T10:00:05Z")
	sendFrame(t, a, "", "ghost", "2026-08-31T10:00:06Z")
	sendFrame(t, a, "alice", "second", "2026-08-31T10:00:07Z")
	for _, conn := range []*websocket.Conn{a, b, c} {
		assert.Equal(t, "second", readFrame(t, conn)["message"])
	}

	require.NoError(t, c.Close())
	assert.EqualValues(t, 2, readFrame(t, a)["count"])
	assert.EqualValues(t, 2, readFrame(t, b)["count"])

	require.NoError(t, b.Close())
	assert.EqualValues(t, 1, readFrame(t, a)["count"])
}

// A connection joining a room whose history exceeds its send buffer must
// still receive the whole scrollback, in order, before the presence frame.
func TestReplayLargerThanSendBuffer(t *testing.T) {
	st := store.NewMemoryStore(0)
	ctx := context.Background()
	const total = 100
	for i := 0; i < total; i++ {
		_, err := st.Append(ctx, &model.ChatMessage{Sender: "archive", Message: fmt.Sprintf("entry %d", i), Timestamp: "2026-08-30T08:00:00Z"})
		require.NoError(t, err)
	}
	addr := startServerWith(t, st, ws.HandlerConfig{SendBuffer: 8})

	conn := dial(t, addr)
	assert.Equal(t, model.TypeWelcome, readFrame(t, conn)["type"])
	for i := 0; i < total; i++ {
		got := readFrame(t, conn)
		require.EqualValues(t, i+1, got["seq"])
		assert.Equal(t, fmt.Sprintf("entry %d", i), got["message"])
	}
	assert.EqualValues(t, 1, readFrame(t, conn)["count"])
}

// Drives the packaged client SDK against a live server: scrollback fetch,
// echo of its own send, presence and local-only reactions.
func TestClientSessionAgainstLiveServer(t *testing.T) {
	addr := startServer(t)

	// seed one message so the SDK has scrollback to fetch
	seed := dial(t, addr)
	readFrame(t, seed) // welcome
	readFrame(t, seed) // presence
	sendFrame(t, seed, "greeter", "welcome along", "2026-08-31T09:00:00Z")
	readFrame(t, seed) // echo
	require.NoError(t, seed.Close())

	sess := chatclient.NewSession(chatclient.Config{
		URL:         fmt.Sprintf("ws://%s/chat", addr),
		HistoryURL:  fmt.Sprintf("http://%s/api/messages", addr),
		DisplayName: "alice",
	})
	require.NoError(t, sess.Connect(context.Background()))
	defer sess.Close()
	vm := sess.View()

	require.Eventually(t, func() bool {
		return len(vm.Messages()) == 1 && vm.Online() == 1
	}, 5*time.Second, 20*time.Millisecond, "scrollback and presence")
	assert.Equal(t, chatclient.Connected, vm.Status())
	assert.Equal(t, "welcome along", vm.Messages()[0].Message)
	assert.False(t, vm.IsMine(vm.Messages()[0]))

	vm.SetComposer("good evening")
	require.NoError(t, sess.SendComposer())
	assert.Empty(t, vm.Composer(), "composer clears on send; the message arrives via echo")

	require.Eventually(t, func() bool {
		return len(vm.Messages()) == 2
	}, 5*time.Second, 20*time.Millisecond, "own message echoed back")
	mine := vm.Messages()[1]
	assert.Equal(t, "good evening", mine.Message)
	assert.True(t, vm.IsMine(mine))

	// reactions stay local: mutate the entry, nothing goes over the wire
	require.True(t, vm.React(mine.Seq, "🔥"))
	assert.Equal(t, "🔥", vm.Messages()[1].Reaction)
}
