package store

import (
	"context"
	"sync"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// Store is the append-only chat history. Append assigns the sequence number
// that defines the shared total order; All and Since return snapshots in
// that order. Implementations must be safe for concurrent use, but the hub
// additionally serializes Append with fan-out so broadcast order always
// matches stored order.
type Store interface {
	Append(ctx context.Context, m *model.ChatMessage) (int64, error)
	All(ctx context.Context) ([]model.ChatMessage, error)
	Since(ctx context.Context, seq int64) ([]model.ChatMessage, error)
}

// MemoryStore keeps history in process memory, capped to the most recent
// maxEntries. It is the default backend and the one used in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	msgs       []model.ChatMessage
	nextSeq    int64
	maxEntries int
}

const DefaultMaxEntries = 1000

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{nextSeq: 1, maxEntries: maxEntries}
}

func (s *MemoryStore) Append(_ context.Context, m *model.ChatMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Seq = s.nextSeq
	s.nextSeq++
	s.msgs = append(s.msgs, *m)
	if len(s.msgs) > s.maxEntries {
		s.msgs = s.msgs[len(s.msgs)-s.maxEntries:]
	}
	return m.Seq, nil
}

func (s *MemoryStore) All(_ context.Context) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChatMessage, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func (s *MemoryStore) Since(_ context.Context, seq int64) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// entries are ordered by seq, find the first one past the cursor
	i := 0
	for i < len(s.msgs) && s.msgs[i].Seq <= seq {
		i++
	}
	out := make([]model.ChatMessage, len(s.msgs)-i)
	copy(out, s.msgs[i:])
	return out, nil
}
