package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "nutritrack-signaling/pkg/errors"
	"nutritrack-signaling/pkg/logger"
	"nutritrack-signaling/pkg/response"
)

// RateLimiter implements a fixed-window rate limit shared by every node
// through Redis
type RateLimiter struct {
	redisClient *redis.Client
	requests    int
	window      time.Duration
}

// NewRateLimiter creates a new rate limiter allowing requests per window
func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		requests:    requests,
		window:      window,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			identifier = "user:" + userID.String()
		}

		allowed, remaining, resetAt, err := rl.checkRateLimit(c.Request.Context(), identifier)
		if err != nil {
			// Fail open when Redis is unavailable.
			logger.Warn("Rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, string(apperrors.ErrCodeRateLimitExceeded), "Rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}

// checkRateLimit counts the request in the current window
func (rl *RateLimiter) checkRateLimit(ctx context.Context, identifier string) (bool, int, int64, error) {
	seconds := int64(rl.window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	window := time.Now().Unix() / seconds
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, window)

	pipe := rl.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := (window + 1) * seconds

	return count <= rl.requests, remaining, resetAt, nil
}
