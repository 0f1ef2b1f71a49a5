package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNode(t *testing.T) {
	assert.Equal(t, "node-a", NewHandle("node-a", "c1").Node())
	assert.Equal(t, "pod/7", NewHandle("pod/7", "c1").Node())
	assert.Equal(t, "", Handle("bare").Node())
}

func TestMemoryRegistry_RegisterThenLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(4)
	u := uuid.New()

	prev, err := r.Register(ctx, u, "n/h1")
	require.NoError(t, err)
	assert.Empty(t, prev)

	h, ok, err := r.Lookup(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Handle("n/h1"), h)
}

func TestMemoryRegistry_LookupUnknown(t *testing.T) {
	r := NewMemoryRegistry(4)

	_, ok, err := r.Lookup(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRegistry_StaleUnregisterKeepsNewer(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(4)
	u := uuid.New()

	_, _ = r.Register(ctx, u, "n/h1")
	prev, err := r.Register(ctx, u, "n/h2")
	require.NoError(t, err)
	assert.Equal(t, Handle("n/h1"), prev)

	removed, err := r.Unregister(ctx, u, "n/h1")
	require.NoError(t, err)
	assert.False(t, removed)

	h, ok, _ := r.Lookup(ctx, u)
	assert.True(t, ok)
	assert.Equal(t, Handle("n/h2"), h)

	removed, err = r.Unregister(ctx, u, "n/h2")
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, _ = r.Lookup(ctx, u)
	assert.False(t, ok)
}

func TestMemoryRegistry_ConcurrentUsers(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(8)
	users := make([]uuid.UUID, 200)
	for i := range users {
		users[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			h := Handle(fmt.Sprintf("n/%d", i))
			_, _ = r.Register(ctx, u, h)
			if i%2 == 0 {
				_, _ = r.Unregister(ctx, u, h)
			}
		}(i, u)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	for i, u := range users {
		_, ok, _ := r.Lookup(ctx, u)
		assert.Equal(t, i%2 == 1, ok)
	}
}

func TestNewMemoryRegistry_ClampsShards(t *testing.T) {
	r := NewMemoryRegistry(0)
	assert.Len(t, r.shards, 1)
}
