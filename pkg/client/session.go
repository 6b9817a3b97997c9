package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// State is the connection status of a chat session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

var ErrNotConnected = errors.New("session is not connected")

type Config struct {
	// URL is the chat socket endpoint, e.g. ws://host:8080/chat.
	URL string
	// HistoryURL is the scrollback endpoint, e.g. http://host:8080/api/messages.
	// Optional; without it the session starts with an empty scrollback.
	HistoryURL  string
	DisplayName string
	HTTPClient  *http.Client
	Logger      *zap.SugaredLogger

	// Reconnect backoff bounds. Zero values get defaults.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Session drives one client connection through
// Disconnected → Connecting → Connected, with Reconnecting on transport
// failure: exponential backoff, then a gap-fill fetch from the last seen
// sequence so no stretch of history is lost across the drop.
type Session struct {
	cfg Config
	vm  *ViewModel

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

func NewSession(cfg Config) *Session {
	if cfg.DisplayName == "" {
		cfg.DisplayName = fmt.Sprintf("Guest%d", rand.Intn(1000))
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Session{
		cfg:  cfg,
		vm:   NewViewModel(cfg.DisplayName),
		done: make(chan struct{}),
	}
}

// View exposes the presentation state the UI renders from.
func (s *Session) View() *ViewModel { return s.vm }

// Connect dials the chat endpoint and starts the receive loop. The history
// fetch happens after the socket is open; if it fails the session continues
// with an empty scrollback.
func (s *Session) Connect(ctx context.Context) error {
	s.vm.setStatus(Connecting)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.vm.setStatus(Disconnected)
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.vm.setStatus(Connected)

	s.fetchHistory(ctx, 0)
	go s.readLoop(ctx, conn)
	return nil
}

// Send emits a chat message under the current display name. The timestamp is
// the local clock and is display metadata only; the server decides ordering.
func (s *Session) Send(body string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || s.vm.Status() != Connected {
		return ErrNotConnected
	}
	in := model.Inbound{
		Sender:    s.vm.DisplayName(),
		Message:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(in)
}

// SendComposer sends the composer content and clears it. The sent message
// appears in the list only once the server echoes it back.
func (s *Session) SendComposer() error {
	body := s.vm.Composer()
	if body == "" {
		return nil
	}
	if err := s.Send(body); err != nil {
		return err
	}
	s.vm.SetComposer("")
	return nil
}

// Close tears the session down. No buffering or resend of unsent messages.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	close(s.done)
	s.mu.Unlock()

	s.vm.setStatus(Disconnected)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			s.cfg.Logger.Warnw("connection lost", "err", err)
			s.reconnect(ctx)
			return
		}
		if err := s.vm.Apply(frame); err != nil {
			s.cfg.Logger.Debugw("unparseable frame ignored", "err", err)
		}
	}
}

func (s *Session) reconnect(ctx context.Context) {
	s.vm.setStatus(Reconnecting)
	wait := s.cfg.BackoffBase
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.vm.setStatus(Disconnected)
			return
		case <-time.After(wait):
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
		if err != nil {
			s.cfg.Logger.Debugw("reconnect attempt failed", "wait", wait, "err", err)
			wait *= 2
			if wait > s.cfg.BackoffMax {
				wait = s.cfg.BackoffMax
			}
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.vm.setStatus(Connected)
		// fill the gap since the last message we saw before the drop
		s.fetchHistory(ctx, s.vm.LastSeq())
		go s.readLoop(ctx, conn)
		return
	}
}

func (s *Session) fetchHistory(ctx context.Context, after int64) {
	if s.cfg.HistoryURL == "" {
		return
	}
	url := s.cfg.HistoryURL
	if after > 0 {
		url = fmt.Sprintf("%s?after=%d", url, after)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		s.cfg.Logger.Warnw("history fetch failed", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.cfg.Logger.Warnw("history fetch failed", "status", resp.StatusCode)
		return
	}
	var msgs []model.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		s.cfg.Logger.Warnw("history decode failed", "err", err)
		return
	}
	s.vm.MergeHistory(msgs)
}
