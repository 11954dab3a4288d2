package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// Breaker wraps a Store with a circuit breaker. After a run of consecutive
// failures calls fail immediately for openFor, so a dead backend does not
// cost a full timeout on every cycle. Nothing is retried.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner. failures is the number of consecutive failures
// that opens the breaker.
func NewBreaker(inner Store, name string, failures uint32, openFor time.Duration, log zerolog.Logger) *Breaker {
	if failures < 1 {
		failures = 1
	}
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			// an empty command key is a reachable backend
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoCommand)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store breaker state change")
			},
		}),
	}
}

// FetchCommand calls the wrapped store unless the breaker is open.
func (b *Breaker) FetchCommand(ctx context.Context) (logic.Command, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.FetchCommand(ctx)
	})
	if err != nil {
		return logic.CommandUnknown, rejected("fetch command", err)
	}
	return res.(logic.Command), nil
}

// PublishRate calls the wrapped store unless the breaker is open.
func (b *Breaker) PublishRate(ctx context.Context, channel pulse.Channel, rate float64) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.PublishRate(ctx, channel, rate)
	})
	if err != nil {
		return rejected("publish "+channel.String(), err)
	}
	return nil
}

// State returns the breaker state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsConnected reports the wrapped store's connection status.
func (b *Breaker) IsConnected() bool {
	if cs, ok := b.inner.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return b.cb.State() != gobreaker.StateOpen
}

// Close closes the wrapped store.
func (b *Breaker) Close() error {
	return b.inner.Close()
}

// rejected keeps errors from the wrapped store as they are and marks the
// breaker's own refusals as transient.
func rejected(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return transient(op, err)
	}
	return err
}
