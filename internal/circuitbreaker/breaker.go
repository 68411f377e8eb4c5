package circuitbreaker

import (
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/everpay/server/internal/config"
)

// Breaker guards calls to the Stripe API. A run of upstream failures opens
// the circuit so checkout requests fail fast instead of stacking up behind
// a degraded provider.
type Breaker struct {
	enabled bool
	cb      *gobreaker.CircuitBreaker
}

// New creates a breaker from application config. A disabled breaker passes
// every call through.
func New(cfg config.BreakerConfig, log zerolog.Logger) *Breaker {
	b := &Breaker{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return b
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe_api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration,
		Timeout:     cfg.Timeout.Duration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuitbreaker.state_changed")
		},
	})
	return b
}

// Execute wraps a Stripe call with circuit breaker protection.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	if !b.enabled || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// State returns the current breaker state for health reporting.
func (b *Breaker) State() string {
	if !b.enabled || b.cb == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
