package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewCircuitBreaker("push", 2, time.Minute)
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, CircuitBreakerClosed, b.State())
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom)
	assert.Equal(t, CircuitBreakerOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewCircuitBreaker("push", 2, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.NoError(t, b.Execute(ctx, succeed))
	_ = b.Execute(ctx, fail)

	assert.Equal(t, CircuitBreakerClosed, b.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	b := NewCircuitBreaker("push", 1, 10*time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, CircuitBreakerOpen, b.State())

	now = now.Add(11 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, fail), errBoom, "probe is let through")
	assert.Equal(t, CircuitBreakerOpen, b.State(), "failed probe reopens")

	now = now.Add(11 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, CircuitBreakerClosed, b.State())
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("eventually succeeds", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, "connect", 3, time.Millisecond, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, "connect", 2, time.Millisecond, time.Millisecond, func(context.Context) error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("context cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Retry(cctx, "connect", 5, time.Hour, time.Hour, fail)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
