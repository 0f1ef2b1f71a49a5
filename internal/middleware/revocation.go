package middleware

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationChecker looks token ids up in the blacklist the dashboard's
// auth service maintains
type RedisRevocationChecker struct {
	client *redis.Client
}

// NewRedisRevocationChecker creates a new RedisRevocationChecker
func NewRedisRevocationChecker(client *redis.Client) *RedisRevocationChecker {
	return &RedisRevocationChecker{client: client}
}

// IsTokenRevoked checks blacklist:<jti>
func (c *RedisRevocationChecker) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := c.client.Exists(ctx, fmt.Sprintf("blacklist:%s", tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist in redis: %w", err)
	}
	return exists > 0, nil
}
