package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptySender  = errors.New("sender is empty")
	ErrEmptyBody    = errors.New("message body is empty")
	ErrBodyTooLarge = errors.New("message body too large")
)

// MaxBodyBytes caps a single chat message body. Frames above the limit are
// dropped at the router, same as any other malformed frame.
const MaxBodyBytes = 4096

// Inbound is the frame a client sends over the chat socket.
// The timestamp is client-supplied and kept as display metadata only;
// ordering is decided by the server-assigned sequence number.
type Inbound struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Validate reports why an inbound frame is not acceptable. Callers discard
// invalid frames silently; the error is only for logging.
func (in Inbound) Validate() error {
	if strings.TrimSpace(in.Sender) == "" {
		return ErrEmptySender
	}
	if strings.TrimSpace(in.Message) == "" {
		return ErrEmptyBody
	}
	if len(in.Message) > MaxBodyBytes {
		return ErrBodyTooLarge
	}
	return nil
}

// ChatMessage is one entry of the shared history. Seq is assigned by the
// store at append time and is the total order every viewer converges to.
// SenderID is the stable per-connection id of the originating socket, used
// for "is mine" rendering instead of display-name equality.
// Reaction is a client-local annotation; the server never sets it.
type ChatMessage struct {
	Seq        int64     `bson:"seq" json:"seq"`
	Sender     string    `bson:"sender" json:"sender"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	Message    string    `bson:"message" json:"message"`
	Timestamp  string    `bson:"timestamp" json:"timestamp"`
	ReceivedAt time.Time `bson:"received_at" json:"-"`
	Reaction   string    `bson:"-" json:"reaction,omitempty"`
}

// Presence is the broadcast frame announcing how many sockets are open.
type Presence struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Welcome is unicast once per connection and carries the stable id the
// server stamps on that connection's messages.
type Welcome struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

const (
	// TypeUserCount discriminates presence frames. Chat messages carry no
	// type field and are treated as the default kind.
	TypeUserCount = "userCount"
	TypeWelcome   = "welcome"
)

func NewPresence(count int) Presence {
	return Presence{Type: TypeUserCount, Count: count}
}

func NewWelcome(id string) Welcome {
	return Welcome{Type: TypeWelcome, ID: id}
}
