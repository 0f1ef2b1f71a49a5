package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack-signaling/pkg/resilience"
)

type failingProvider struct {
	calls int
}

func (p *failingProvider) Send(context.Context, *Notification, []string) (*SendResult, error) {
	p.calls++
	return nil, errors.New("fcm unavailable")
}

func TestResilientProvider_PassesThrough(t *testing.T) {
	mock := &MockProvider{}
	p := NewResilientProvider(mock, resilience.NewCircuitBreaker("push", 3, time.Minute))

	result, err := p.Send(context.Background(), &Notification{Title: "Missed call"}, []string{"t1", "t2"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, mock.SentCount())
}

func TestResilientProvider_OpensOnFailures(t *testing.T) {
	backend := &failingProvider{}
	p := NewResilientProvider(backend, resilience.NewCircuitBreaker("push", 2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := p.Send(ctx, &Notification{}, []string{"t"})
		assert.Error(t, err)
	}

	assert.Equal(t, 2, backend.calls)
	_, err := p.Send(ctx, &Notification{}, []string{"t"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
