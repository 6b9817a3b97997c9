package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Client is one open chat socket. ID is the stable per-connection identity
// stamped on every message this socket sends; it is issued at connect time
// and never changes, unlike the self-declared display name.
type Client struct {
	ID        string
	Connected time.Time

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		ID:        uuid.NewString(),
		Connected: time.Now().UTC(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

// enqueue hands a frame to the client's write path without waiting. When the
// buffer is full the frame is dropped for this client only, so a slow reader
// never blocks the broadcast path.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// deliver hands a frame to the write path, waiting for buffer room. The
// connect-time history replay uses it: the snapshot must arrive complete,
// never truncated to the buffer size. The wait ends when the connection is
// torn down, so a wedged socket cannot hold the caller past its teardown.
func (c *Client) deliver(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

// Close releases the socket and wakes the write pump and any pending
// deliver. Safe to call more than once; anything still buffered is
// discarded.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It owns all writes to the socket; a write error tears
// the connection down so blocked senders are released promptly.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
