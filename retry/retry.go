package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy defines how delays grow between attempts.
type Strategy int

const (
	// StrategyExponential multiplies the delay by Multiplier each attempt.
	StrategyExponential Strategy = iota
	// StrategyLinear grows the delay linearly with the attempt number.
	StrategyLinear
	// StrategyConstant uses InitialDelay for every attempt.
	StrategyConstant
)

// Gate is consulted before an attempt. A non-nil error refuses the
// attempt and terminates the retry loop with that error.
type Gate func() error

// Config configures a Policy.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the base delay before the first retry. It is also
	// the width of the jitter interval.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff before jitter is added.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the growth factor for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy selects the backoff curve.
	// Default: StrategyExponential
	Strategy Strategy

	// DisableJitter turns off the random jitter added to each delay.
	// Jitter is on by default to desynchronize concurrent retriers.
	DisableJitter bool

	// RetryIf determines whether an error is worth retrying.
	// Default: all non-nil errors are retryable.
	RetryIf func(err error) bool

	// OnRetry is called after a failed attempt that will be retried,
	// with the delay chosen before the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep overrides the suspension between attempts. Used by tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Policy implements retry with backoff.
type Policy struct {
	config Config
}

// New creates a new retry policy.
func New(config Config) *Policy {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}

	return &Policy{config: config}
}

// Execute runs the operation with retry.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	return p.ExecuteGated(ctx, nil, op)
}

// ExecuteGated runs the operation with retry, consulting gate before
// every attempt, the first included. A gate refusal returns the gate's
// error immediately; it is not counted as an attempt and not retried.
func (p *Policy) ExecuteGated(ctx context.Context, gate Gate, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if gate != nil {
			if err := gate(); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.config.RetryIf(err) {
			return err
		}
		if attempt >= p.config.MaxAttempts {
			break
		}

		delay := p.delay(attempt)
		if p.config.OnRetry != nil {
			p.config.OnRetry(attempt, err, delay)
		}

		if err := p.config.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// delay computes the backoff before the attempt following attempt n
// (1-indexed): min(MaxDelay, base(n)) plus jitter in [0, InitialDelay).
func (p *Policy) delay(attempt int) time.Duration {
	var delay time.Duration

	switch p.config.Strategy {
	case StrategyConstant:
		delay = p.config.InitialDelay

	case StrategyLinear:
		delay = p.config.InitialDelay * time.Duration(attempt)

	case StrategyExponential:
		factor := math.Pow(p.config.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(p.config.InitialDelay) * factor)
	}

	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}

	if !p.config.DisableJitter {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(p.config.InitialDelay)))
	}

	return delay
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.config
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
