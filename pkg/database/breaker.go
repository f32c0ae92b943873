package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "store_circuit_breaker_state",
		Help: "Current state of a store circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name string
	// CallTimeout bounds each guarded call. Zero disables the per-call deadline.
	CallTimeout time.Duration
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns defaults suitable for a key-value store round-trip.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		CallTimeout:         2 * time.Second,
		OpenTimeout:         10 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// ErrBreakerOpen is returned when a call is rejected without reaching the store.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker guards calls to a backing store with a deadline and a circuit breaker,
// so that an unreachable store fails fast instead of hanging requests.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
}

// NewBreaker creates a Breaker. logger may be nil.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			if logger != nil {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return &Breaker{
		cb:      gobreaker.NewCircuitBreaker[struct{}](settings),
		timeout: cfg.CallTimeout,
	}
}

// Do runs fn under the breaker. Context cancellation by the caller is not counted
// as a store failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrBreakerOpen, err)
	}
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// State reports the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
