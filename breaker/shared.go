package breaker

import (
	"context"
	"strconv"
	"time"
)

// SharedBreaker is a circuit breaker whose state lives in a Store, so
// every replica of the caller observes the same circuit. The state
// machine matches Breaker; the difference is that counters move via the
// store's atomic increments and state transitions via compare-and-swap,
// so concurrent replicas cannot double-apply a transition.
//
// Methods take a context and may return a storage error; callers decide
// whether a store outage fails open or closed.
type SharedBreaker struct {
	config Config
	store  Store

	keyState       string
	keyFailures    string
	keySuccesses   string
	keyProbes      string
	keyLastFailure string
}

// NewShared creates a breaker backed by the given store. Breakers in
// different processes configured with the same Name and store share one
// circuit.
func NewShared(config Config, store Store) *SharedBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Name == "" {
		config.Name = "default"
	}

	prefix := "cb:" + config.Name
	return &SharedBreaker{
		config:         config,
		store:          store,
		keyState:       prefix + ":state",
		keyFailures:    prefix + ":failures",
		keySuccesses:   prefix + ":successes",
		keyProbes:      prefix + ":probes",
		keyLastFailure: prefix + ":last_failure",
	}
}

// Name returns the breaker name.
func (b *SharedBreaker) Name() string {
	return b.config.Name
}

// Allow reports whether a call may be attempted now. The lazy
// open-to-half-open transition is applied via compare-and-swap so only
// one replica resets the probe accounting.
func (b *SharedBreaker) Allow(ctx context.Context) (bool, error) {
	state, err := b.readState(ctx)
	if err != nil {
		return false, err
	}

	if state == StateOpen {
		last, err := b.readLastFailure(ctx)
		if err != nil {
			return false, err
		}
		if b.config.Clock().Sub(last) < b.config.RecoveryTimeout {
			return false, nil
		}

		swapped, err := b.store.CompareAndSwap(ctx, b.keyState, StateOpen.String(), StateHalfOpen.String())
		if err != nil {
			return false, err
		}
		if swapped {
			if err := b.store.Set(ctx, b.keySuccesses, "0"); err != nil {
				return false, err
			}
			if err := b.store.Set(ctx, b.keyProbes, "0"); err != nil {
				return false, err
			}
		}
		state = StateHalfOpen
	}

	if state == StateHalfOpen {
		probes, err := b.store.Incr(ctx, b.keyProbes, 1)
		if err != nil {
			return false, err
		}
		if probes > int64(b.config.MaxProbes) {
			_, err := b.store.Incr(ctx, b.keyProbes, -1)
			return false, err
		}
	}

	return true, nil
}

// RecordOutcome updates shared circuit state after an attempt admitted
// by Allow.
func (b *SharedBreaker) RecordOutcome(ctx context.Context, opErr error) error {
	failed := b.config.IsFailure(opErr)

	state, err := b.readState(ctx)
	if err != nil {
		return err
	}

	switch state {
	case StateClosed:
		if !failed {
			return b.store.Set(ctx, b.keyFailures, "0")
		}
		failures, err := b.store.Incr(ctx, b.keyFailures, 1)
		if err != nil {
			return err
		}
		if err := b.stampLastFailure(ctx); err != nil {
			return err
		}
		if failures >= int64(b.config.FailureThreshold) {
			swapped, err := b.store.CompareAndSwap(ctx, b.keyState, StateClosed.String(), StateOpen.String())
			if err != nil {
				return err
			}
			if swapped {
				b.notify(StateClosed, StateOpen)
				return b.store.Set(ctx, b.keyFailures, "0")
			}
		}
		return nil

	case StateHalfOpen:
		if _, err := b.store.Incr(ctx, b.keyProbes, -1); err != nil {
			return err
		}
		if failed {
			if err := b.store.Set(ctx, b.keySuccesses, "0"); err != nil {
				return err
			}
			if err := b.stampLastFailure(ctx); err != nil {
				return err
			}
			swapped, err := b.store.CompareAndSwap(ctx, b.keyState, StateHalfOpen.String(), StateOpen.String())
			if err != nil {
				return err
			}
			if swapped {
				b.notify(StateHalfOpen, StateOpen)
			}
			return nil
		}
		successes, err := b.store.Incr(ctx, b.keySuccesses, 1)
		if err != nil {
			return err
		}
		if successes >= int64(b.config.SuccessThreshold) {
			swapped, err := b.store.CompareAndSwap(ctx, b.keyState, StateHalfOpen.String(), StateClosed.String())
			if err != nil {
				return err
			}
			if swapped {
				b.notify(StateHalfOpen, StateClosed)
				if err := b.store.Set(ctx, b.keyFailures, "0"); err != nil {
					return err
				}
				return b.store.Set(ctx, b.keySuccesses, "0")
			}
		}
		return nil

	case StateOpen:
		if failed {
			return b.stampLastFailure(ctx)
		}
		return nil
	}

	return nil
}

// Execute runs the operation through the shared circuit breaker.
func (b *SharedBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	ok, err := b.Allow(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCircuitOpen
	}

	opErr := op(ctx)
	if err := b.RecordOutcome(ctx, opErr); err != nil {
		return err
	}
	return opErr
}

// State returns the current shared state without side effects.
func (b *SharedBreaker) State(ctx context.Context) (State, error) {
	return b.readState(ctx)
}

// Snapshot returns the shared state and counters.
func (b *SharedBreaker) Snapshot(ctx context.Context) (Snapshot, error) {
	state, err := b.readState(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	failures, err := b.readInt(ctx, b.keyFailures)
	if err != nil {
		return Snapshot{}, err
	}
	successes, err := b.readInt(ctx, b.keySuccesses)
	if err != nil {
		return Snapshot{}, err
	}
	last, err := b.readLastFailure(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		State:       state,
		Failures:    int(failures),
		Successes:   int(successes),
		LastFailure: last,
	}, nil
}

// Reset returns the shared circuit to closed and clears all counters.
func (b *SharedBreaker) Reset(ctx context.Context) error {
	if err := b.store.Set(ctx, b.keyState, StateClosed.String()); err != nil {
		return err
	}
	if err := b.store.Set(ctx, b.keyFailures, "0"); err != nil {
		return err
	}
	if err := b.store.Set(ctx, b.keySuccesses, "0"); err != nil {
		return err
	}
	return b.store.Set(ctx, b.keyProbes, "0")
}

func (b *SharedBreaker) readState(ctx context.Context) (State, error) {
	value, ok, err := b.store.Get(ctx, b.keyState)
	if err != nil {
		return StateClosed, err
	}
	if !ok {
		return StateClosed, nil
	}
	state, err := ParseState(value)
	if err != nil {
		return StateClosed, err
	}
	return state, nil
}

func (b *SharedBreaker) readInt(ctx context.Context, key string) (int64, error) {
	value, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *SharedBreaker) readLastFailure(ctx context.Context) (time.Time, error) {
	nanos, err := b.readInt(ctx, b.keyLastFailure)
	if err != nil || nanos == 0 {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}

func (b *SharedBreaker) stampLastFailure(ctx context.Context) error {
	now := b.config.Clock().UnixNano()
	return b.store.Set(ctx, b.keyLastFailure, strconv.FormatInt(now, 10))
}

func (b *SharedBreaker) notify(from, to State) {
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}
