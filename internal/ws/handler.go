package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// HandlerConfig carries the per-connection tunables. Zero values fall back
// to the same defaults the config loader applies.
type HandlerConfig struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	ReadDeadline   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	RatePerMinute  int
	RateBurst      int
}

func (c *HandlerConfig) applyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.WriteDeadline == 0 {
		c.WriteDeadline = 10 * time.Second
	}
	if c.ReadDeadline == 0 {
		c.ReadDeadline = 60 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.RatePerMinute == 0 {
		c.RatePerMinute = 120
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
}

// Handler runs the lifetime of one chat socket: welcome, register, read
// loop, teardown. The socket needs no token; anyone holding the URL may
// connect under any display name.
type Handler struct {
	hub *Hub
	log *zap.SugaredLogger
	cfg HandlerConfig
}

func NewHandler(hub *Hub, cfg HandlerConfig, log *zap.SugaredLogger) *Handler {
	cfg.applyDefaults()
	return &Handler{hub: hub, log: log, cfg: cfg}
}

// Handle returns the function mounted behind the websocket upgrade route.
func (h *Handler) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		c := NewClient(conn, h.cfg.SendBuffer)

		// the welcome frame carries the stable id this connection's messages
		// will be stamped with; it must be the first thing the client reads
		welcome, _ := json.Marshal(model.NewWelcome(c.ID))
		c.enqueue(welcome)

		// the pump must drain before the hub replays history: a snapshot
		// larger than the send buffer would otherwise be truncated
		go c.writePump(h.cfg.PingInterval, h.cfg.WriteDeadline)

		ctx := context.Background()
		h.hub.Register(ctx, c)
		h.log.Infow("client connected", "client", c.ID, "online", h.hub.Count())

		h.readLoop(ctx, c)

		h.hub.Unregister(c)
		c.Close()
		h.log.Infow("client disconnected", "client", c.ID, "online", h.hub.Count())
	}
}

func (h *Handler) readLoop(ctx context.Context, c *Client) {
	limiter := rate.NewLimiter(rate.Limit(float64(h.cfg.RatePerMinute)/60.0), h.cfg.RateBurst)

	c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadDeadline))
	})

	for {
		mt, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadDeadline))
		if mt != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			h.log.Debugw("rate limited, frame dropped", "client", c.ID)
			continue
		}
		h.hub.Inbound(ctx, c, raw)
	}
}
