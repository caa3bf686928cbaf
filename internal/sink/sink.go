package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/23016960-sys/honeypot/internal/event"
)

// Sink is one destination for captured events. Append returns the identity
// the sink assigned to the event, or zero when the sink has no notion of
// identity.
type Sink interface {
	Name() string
	Append(ctx context.Context, ev event.Event) (int64, error)
}

// Chain is an ordered list of sinks. An event is offered to each sink in
// order and the chain stops at the first success, so the head acts as the
// primary store and everything after it as progressively simpler fallbacks.
type Chain struct {
	sinks []Sink
}

// NewChain builds a chain over the given sinks, tried in argument order.
func NewChain(sinks ...Sink) *Chain {
	return &Chain{sinks: sinks}
}

// Append offers the event to each sink in order. It returns the name of the
// sink that accepted the event and the identity that sink assigned. When
// every sink fails the last failure is returned; intermediate failures are
// logged to the operational channel only.
func (c *Chain) Append(ctx context.Context, ev event.Event) (string, int64, error) {
	if len(c.sinks) == 0 {
		return "", 0, errors.New("sink chain is empty")
	}
	var lastErr error
	for _, s := range c.sinks {
		id, err := s.Append(ctx, ev)
		if err == nil {
			return s.Name(), id, nil
		}
		log.Warn().Str("sink", s.Name()).Err(err).Msg("event append failed")
		lastErr = fmt.Errorf("sink %s: %w", s.Name(), err)
	}
	return "", 0, lastErr
}
