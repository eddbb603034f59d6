package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/estatehub/intelligence/internal/observability"
)

// BreakerProvider wraps a Provider with a circuit breaker so a flapping
// remote endpoint degrades to fast failures instead of piling up timeouts.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// NewBreakerProvider creates a circuit-breaker wrapper around the provider
func NewBreakerProvider(inner Provider, logger observability.Logger) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger.WithPrefix("embedding-breaker"),
	}
}

// Embed delegates to the wrapped provider through the circuit breaker. An
// open breaker reports the provider as unavailable rather than failing the
// individual call.
func (p *BreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrProviderUnavailable)
		}
		return nil, err
	}

	return result.([]float32), nil
}
