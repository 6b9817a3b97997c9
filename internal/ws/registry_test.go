package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAddRemoveCount(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	a := NewClient(nil, 1)
	b := NewClient(nil, 1)
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Count())

	assert.True(t, r.Remove(a))
	assert.Equal(t, 1, r.Count())

	// removing twice is a no-op and must not drive the count negative
	assert.False(t, r.Remove(a))
	assert.Equal(t, 1, r.Count())

	assert.True(t, r.Remove(b))
	assert.False(t, r.Remove(b))
	assert.Equal(t, 0, r.Count())
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	a := NewClient(nil, 1)
	r.Add(a)

	snap := r.Snapshot()
	assert.Len(t, snap, 1)

	r.Remove(a)
	// the earlier snapshot is unaffected by later mutation
	assert.Len(t, snap, 1)
	assert.Empty(t, r.Snapshot())
}
