package push

import (
	"context"

	"nutritrack-signaling/pkg/resilience"
)

// ResilientProvider stops calling a failing push backend until its circuit
// breaker cools down
type ResilientProvider struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

// NewResilientProvider wraps provider with breaker
func NewResilientProvider(provider Provider, breaker *resilience.CircuitBreaker) *ResilientProvider {
	return &ResilientProvider{provider: provider, breaker: breaker}
}

// Send implements Provider
func (p *ResilientProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	var result *SendResult
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = p.provider.Send(ctx, notification, tokens)
		return err
	})
	return result, err
}
