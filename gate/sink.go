package gate

import (
	"context"
	"time"

	"github.com/jonwraymond/callguard/breaker"
)

// Event is a structured record of one gateway decision, emitted after
// each attempt and after the terminal outcome. It carries enough
// context to reconstruct the decision path during an incident review.
type Event struct {
	// Key is the admission key the caller passed to Execute.
	Key string

	// Attempt is the 1-indexed attempt number, 0 when the call was
	// short-circuited before any attempt.
	Attempt int

	// Kind is the outcome of this attempt, or of the whole call when
	// Final is set.
	Kind Kind

	// Reason is the short-circuit reason, when applicable.
	Reason string

	// Err is the attempt or terminal error.
	Err error

	// BreakerState is the circuit state observed when the event was
	// recorded.
	BreakerState breaker.State

	// Delay is the backoff chosen before the next attempt. Zero on
	// final events.
	Delay time.Duration

	// Latency is the duration of this attempt, or of the whole call
	// (backoff included) when Final is set.
	Latency time.Duration

	// Final marks the terminal event of an Execute call.
	Final bool
}

// Sink receives gateway events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Emit must be best-effort and must not panic; the gateway
//   never blocks an in-flight call on sink behavior.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc is an adapter to allow ordinary functions to be used as Sinks.
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls the function.
func (f SinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// MultiSink fans events out to several sinks in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		for _, s := range sinks {
			s.Emit(ctx, ev)
		}
	})
}

// noopSink discards all events.
type noopSink struct{}

func (noopSink) Emit(context.Context, Event) {}
