package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nutritrack-signaling/internal/presence"
)

// Register: store the new handle with a TTL and return the old one.
var registerScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return prev
`)

// Compare-and-delete.
var unregisterScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Compare-and-expire.
var refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// PresenceRepository is a presence.Registry shared by every gateway node.
// Entries expire after ttl unless refreshed by the owning connection.
type PresenceRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ presence.Registry = (*PresenceRepository)(nil)

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client, ttl time.Duration) *PresenceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceRepository{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// Register maps userID to h and returns the replaced handle
func (r *PresenceRepository) Register(ctx context.Context, userID uuid.UUID, h presence.Handle) (presence.Handle, error) {
	prev, err := registerScript.Run(ctx, r.client,
		[]string{presenceKey(userID)}, string(h), r.ttl.Milliseconds()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to register presence: %w", err)
	}
	return presence.Handle(prev), nil
}

// Lookup returns the handle currently registered for userID
func (r *PresenceRepository) Lookup(ctx context.Context, userID uuid.UUID) (presence.Handle, bool, error) {
	h, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to lookup presence: %w", err)
	}
	return presence.Handle(h), true, nil
}

// Unregister deletes the mapping only if it still points at h
func (r *PresenceRepository) Unregister(ctx context.Context, userID uuid.UUID, h presence.Handle) (bool, error) {
	n, err := unregisterScript.Run(ctx, r.client, []string{presenceKey(userID)}, string(h)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to unregister presence: %w", err)
	}
	return n > 0, nil
}

// Refresh extends the TTL of the entry while it still points at h (heartbeat)
func (r *PresenceRepository) Refresh(ctx context.Context, userID uuid.UUID, h presence.Handle) (bool, error) {
	n, err := refreshScript.Run(ctx, r.client,
		[]string{presenceKey(userID)}, string(h), r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh presence: %w", err)
	}
	return n > 0, nil
}
