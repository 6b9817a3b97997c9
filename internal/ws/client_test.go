package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	c := NewClient(nil, 1)
	assert.True(t, c.enqueue([]byte("a")))
	assert.False(t, c.enqueue([]byte("b")))
	assert.Equal(t, []byte("a"), <-c.send)
}

func TestDeliverWaitsForBufferRoom(t *testing.T) {
	c := NewClient(nil, 1)
	require.True(t, c.enqueue([]byte("a")))

	delivered := make(chan bool, 1)
	go func() { delivered <- c.deliver([]byte("b")) }()

	select {
	case <-delivered:
		t.Fatal("deliver returned before buffer room freed")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, []byte("a"), <-c.send)
	assert.True(t, <-delivered)
	assert.Equal(t, []byte("b"), <-c.send)
}

func TestDeliverReturnsWhenConnectionCloses(t *testing.T) {
	c := NewClient(nil, 1)
	require.True(t, c.enqueue([]byte("a")))

	delivered := make(chan bool, 1)
	go func() { delivered <- c.deliver([]byte("b")) }()
	c.Close()

	assert.False(t, <-delivered)
	assert.False(t, c.enqueue([]byte("c")), "closed client accepts nothing")
}
