package breaker

import (
	"context"
	"sync"
	"time"
)

// Config configures a Breaker.
type Config struct {
	// Name identifies the protected dependency in hooks and telemetry.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit while closed.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe
	// is admitted.
	// Default: 30 seconds
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	// Default: 1
	SuccessThreshold int

	// MaxProbes is the number of calls admitted concurrently while
	// half-open.
	// Default: 1
	MaxProbes int

	// IsFailure determines whether an error counts against the circuit.
	// Non-retryable errors still count by default: they indicate work
	// reaching a troubled dependency. Callers that consider a class of
	// errors breaker-neutral (client-side validation, for example)
	// exempt it here.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to State)

	// Clock overrides the time source. Used by tests.
	Clock func() time.Time
}

// Breaker is a consecutive-failure circuit breaker.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Locking: counters and state are mutated under one per-breaker mutex;
//   the protected operation is never invoked while the lock is held.
type Breaker struct {
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	probes      int
}

// New creates a new Breaker.
func New(config Config) *Breaker {
	// Apply defaults
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

	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.config.Name
}

// Allow reports whether a call may be attempted now.
//
// While open, Allow lazily moves the circuit to half-open once
// RecoveryTimeout has elapsed since the last failure and admits the
// triggering call as a probe. While half-open, at most MaxProbes calls
// are admitted until their outcomes are recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probes >= b.config.MaxProbes {
			return false
		}
		b.probes++
	}

	return true
}

// RecordOutcome updates circuit state after an attempt admitted by Allow.
// A nil error, or one the IsFailure classifier exempts, counts as success.
func (b *Breaker) RecordOutcome(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := b.config.IsFailure(err)
	from := b.state

	switch b.state {
	case StateClosed:
		if failed {
			b.failures++
			b.lastFailure = b.config.Clock()
			if b.failures >= b.config.FailureThreshold {
				b.failures = 0
				b.state = StateOpen
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		if b.probes > 0 {
			b.probes--
		}
		if failed {
			// Probe failed: reopen and restart the recovery clock.
			b.successes = 0
			b.lastFailure = b.config.Clock()
			b.state = StateOpen
		} else {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.failures = 0
				b.successes = 0
				b.state = StateClosed
			}
		}

	case StateOpen:
		// A straggler outcome from before the trip. Failures restart
		// the recovery clock; successes carry no information here.
		if failed {
			b.lastFailure = b.config.Clock()
		}
	}

	if from != b.state && b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, b.state)
	}
}

// Execute runs the operation through the circuit breaker. It returns
// ErrCircuitOpen without invoking the operation when Allow refuses.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if !b.Allow() {
		return ErrCircuitOpen
	}

	err := op(ctx)
	b.RecordOutcome(err)
	return err
}

// State returns the current circuit state, applying the lazy
// open-to-half-open transition if the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Reset returns the circuit to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probes = 0

	if from != StateClosed && b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, StateClosed)
	}
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && b.config.Clock().Sub(b.lastFailure) >= b.config.RecoveryTimeout {
		b.state = StateHalfOpen
		b.probes = 0
		b.successes = 0
		if b.config.OnStateChange != nil {
			b.config.OnStateChange(b.config.Name, StateOpen, StateHalfOpen)
		}
	}
	return b.state
}

// Snapshot is a serializable view of breaker state, used when state is
// exported to or imported from a shared store.
type Snapshot struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"last_failure"`
}

// Snapshot returns a consistent copy of the current state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:       b.state,
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
	}
}

// Restore replaces breaker state with the snapshot. Probe accounting
// restarts empty.
func (b *Breaker) Restore(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = s.State
	b.failures = s.Failures
	b.successes = s.Successes
	b.lastFailure = s.LastFailure
	b.probes = 0
}
