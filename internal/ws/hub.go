package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SamuelRobart/church-chat-service/internal/model"
	"github.com/SamuelRobart/church-chat-service/internal/store"
)

// Publisher receives every stored message after broadcast, for downstream
// consumers (analytics, notifications). Implementations must tolerate a nil
// receiver so the hub works without a broker configured.
type Publisher interface {
	PublishMessageSent(ctx context.Context, m model.ChatMessage) error
}

// Hub is the single broadcast point. It owns the registry and is the only
// writer to the history store: register/unregister and append+fan-out are
// serialized under one mutex, which is what makes broadcast order identical
// to stored order for every connection.
type Hub struct {
	registry *Registry
	store    store.Store
	log      *zap.SugaredLogger
	producer Publisher

	// PublishRemote, when set, forwards every broadcast chat frame to other
	// instances (redis pub/sub). Optional.
	PublishRemote func(ctx context.Context, frame []byte)

	mu sync.Mutex
}

func NewHub(st store.Store, producer Publisher, log *zap.SugaredLogger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		store:    st,
		log:      log,
		producer: producer,
	}
}

func (h *Hub) Count() int { return h.registry.Count() }

// Register adds the connection, replays the history snapshot to it alone,
// then announces the new presence count to everyone. Replay and registration
// happen under the hub lock, so the new connection sees exactly the stored
// history at connect time: no entry broadcast after this point can be missed
// and none replayed can be duplicated.
func (h *Hub) Register(ctx context.Context, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Add(c)

	msgs, err := h.store.All(ctx)
	if err != nil {
		// the client starts with an empty scrollback rather than being refused
		h.log.Warnw("history replay failed", "client", c.ID, "err", err)
		msgs = nil
	}
	for i := range msgs {
		frame, err := json.Marshal(&msgs[i])
		if err != nil {
			continue
		}
		// replay waits for buffer room instead of dropping: a snapshot larger
		// than the send buffer must still arrive complete, so the client's
		// write pump has to be running before registration
		if !c.deliver(frame) {
			return
		}
	}

	frame, err := json.Marshal(model.NewPresence(h.registry.Count()))
	if err != nil {
		return
	}
	c.deliver(frame)
	for _, other := range h.registry.Snapshot() {
		if other == c {
			continue
		}
		if !other.enqueue(frame) {
			h.log.Debugw("send buffer full, frame dropped", "client", other.ID)
		}
	}
}

// Unregister is idempotent; only the first call for a connection triggers a
// presence announcement.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.registry.Remove(c) {
		return
	}
	h.broadcastPresence()
}

// Inbound validates a raw client frame, appends it to history and broadcasts
// the stored message to every connection, sender included. Malformed frames
// are discarded without touching history or the other connections.
func (h *Hub) Inbound(ctx context.Context, c *Client, raw []byte) {
	var in model.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.log.Debugw("dropping unparseable frame", "client", c.ID, "err", err)
		return
	}
	if err := in.Validate(); err != nil {
		h.log.Debugw("dropping invalid frame", "client", c.ID, "reason", err)
		return
	}

	msg := model.ChatMessage{
		Sender:     in.Sender,
		SenderID:   c.ID,
		Message:    in.Message,
		Timestamp:  in.Timestamp,
		ReceivedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	if _, err := h.store.Append(ctx, &msg); err != nil {
		h.mu.Unlock()
		h.log.Errorw("history append failed", "client", c.ID, "err", err)
		return
	}
	frame, err := json.Marshal(&msg)
	if err != nil {
		h.mu.Unlock()
		h.log.Errorw("marshal stored message", "err", err)
		return
	}
	h.fanout(frame)
	h.mu.Unlock()

	if h.producer != nil {
		if err := h.producer.PublishMessageSent(ctx, msg); err != nil {
			h.log.Warnw("message-sent publish failed", "seq", msg.Seq, "err", err)
		}
	}
	if h.PublishRemote != nil {
		h.PublishRemote(ctx, frame)
	}
}

// DeliverRemote fans out a frame that originated on another instance. It is
// not appended here: remote instances share the durable store, so their
// append already happened before the frame reached the bridge.
func (h *Hub) DeliverRemote(frame []byte) {
	h.mu.Lock()
	h.fanout(frame)
	h.mu.Unlock()
}

func (h *Hub) fanout(frame []byte) {
	for _, c := range h.registry.Snapshot() {
		if !c.enqueue(frame) {
			h.log.Debugw("send buffer full, frame dropped", "client", c.ID)
		}
	}
}

func (h *Hub) broadcastPresence() {
	frame, err := json.Marshal(model.NewPresence(h.registry.Count()))
	if err != nil {
		return
	}
	h.fanout(frame)
}
