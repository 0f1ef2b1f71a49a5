package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack-signaling/internal/presence"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPresenceRepository_RegisterLookup(t *testing.T) {
	_, client := setupRedis(t)
	repo := NewPresenceRepository(client, time.Minute)
	ctx := context.Background()
	u := uuid.New()

	prev, err := repo.Register(ctx, u, "node-a/c1")
	require.NoError(t, err)
	assert.Empty(t, prev)

	h, ok, err := repo.Lookup(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, presence.Handle("node-a/c1"), h)
}

func TestPresenceRepository_StaleUnregister(t *testing.T) {
	_, client := setupRedis(t)
	repo := NewPresenceRepository(client, time.Minute)
	ctx := context.Background()
	u := uuid.New()

	_, err := repo.Register(ctx, u, "node-a/c1")
	require.NoError(t, err)
	prev, err := repo.Register(ctx, u, "node-b/c9")
	require.NoError(t, err)
	assert.Equal(t, presence.Handle("node-a/c1"), prev)

	removed, err := repo.Unregister(ctx, u, "node-a/c1")
	require.NoError(t, err)
	assert.False(t, removed)

	h, ok, err := repo.Lookup(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, presence.Handle("node-b/c9"), h)

	removed, err = repo.Unregister(ctx, u, "node-b/c9")
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err = repo.Lookup(ctx, u)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresenceRepository_ExpiresWithoutRefresh(t *testing.T) {
	mr, client := setupRedis(t)
	repo := NewPresenceRepository(client, time.Minute)
	ctx := context.Background()
	u := uuid.New()

	_, err := repo.Register(ctx, u, "node-a/c1")
	require.NoError(t, err)

	mr.FastForward(45 * time.Second)
	refreshed, err := repo.Refresh(ctx, u, "node-a/c1")
	require.NoError(t, err)
	assert.True(t, refreshed)

	mr.FastForward(45 * time.Second)
	_, ok, err := repo.Lookup(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute)
	_, ok, err = repo.Lookup(ctx, u)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresenceRepository_RefreshIgnoresStaleHandle(t *testing.T) {
	_, client := setupRedis(t)
	repo := NewPresenceRepository(client, time.Minute)
	ctx := context.Background()
	u := uuid.New()

	_, _ = repo.Register(ctx, u, "node-a/c2")

	refreshed, err := repo.Refresh(ctx, u, "node-a/c1")
	require.NoError(t, err)
	assert.False(t, refreshed)
}

func TestPresenceRepository_ConnectionError(t *testing.T) {
	mr, client := setupRedis(t)
	repo := NewPresenceRepository(client, time.Minute)
	mr.Close()

	_, _, err := repo.Lookup(context.Background(), uuid.New())
	assert.Error(t, err)
}
