package gate

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/callguard/breaker"
	"github.com/jonwraymond/callguard/ratelimit"
	"github.com/jonwraymond/callguard/retry"
)

// Config configures a Gateway. One Gateway protects one dependency;
// the limiter inside it is keyed, so one Gateway still rate-limits
// each caller key independently.
type Config struct {
	// Name identifies the protected dependency.
	Name string

	// Breaker configures the circuit breaker.
	Breaker breaker.Config

	// Limiter configures the per-key token bucket limiter.
	Limiter ratelimit.KeyedConfig

	// Retry configures the retry policy.
	Retry retry.Config

	// AttemptTimeout bounds each individual operation invocation,
	// independent of the retry budget. A timed-out attempt fails with
	// ErrAttemptTimeout and goes through the normal backoff and
	// breaker accounting path.
	// Default: 30 seconds
	AttemptTimeout time.Duration

	// MaxConcurrent caps in-flight calls through this gateway.
	// Zero means unlimited.
	MaxConcurrent int64
}

// Option configures a Gateway beyond its Config.
type Option func(*Gateway)

// WithBreaker injects a shared breaker instead of constructing one from
// Config.Breaker. Use it when several gateways protect the same
// dependency.
func WithBreaker(b *breaker.Breaker) Option {
	return func(g *Gateway) {
		g.breaker = b
	}
}

// WithLimiter injects a shared keyed limiter instead of constructing
// one from Config.Limiter. The gateway does not stop a limiter it did
// not create.
func WithLimiter(l *ratelimit.Keyed) Option {
	return func(g *Gateway) {
		g.limiter = l
		g.ownsLimiter = false
	}
}

// WithSink sets the event sink. Without it events are discarded.
func WithSink(s Sink) Option {
	return func(g *Gateway) {
		if s != nil {
			g.sink = s
		}
	}
}

// Gateway mediates calls to one unreliable dependency.
type Gateway struct {
	config      Config
	breaker     *breaker.Breaker
	limiter     *ratelimit.Keyed
	bulkhead    *Bulkhead
	retryCfg    retry.Config
	sink        Sink
	ownsLimiter bool
}

// New creates a Gateway.
func New(config Config, opts ...Option) *Gateway {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = 30 * time.Second
	}
	if config.Breaker.Name == "" {
		config.Breaker.Name = config.Name
	}

	g := &Gateway{
		config:      config,
		sink:        noopSink{},
		ownsLimiter: true,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.breaker == nil {
		g.breaker = breaker.New(config.Breaker)
	}
	if g.limiter == nil {
		g.limiter = ratelimit.NewKeyed(config.Limiter)
	}
	if config.MaxConcurrent > 0 {
		g.bulkhead = NewBulkhead(config.MaxConcurrent)
	}

	// Bake retry defaults once so per-call copies and outcome
	// classification agree on the classifier.
	g.retryCfg = retry.New(config.Retry).Config()

	return g
}

// Name returns the gateway name.
func (g *Gateway) Name() string {
	return g.config.Name
}

// Breaker returns the gateway's circuit breaker.
func (g *Gateway) Breaker() *breaker.Breaker {
	return g.breaker
}

// Limiter returns the gateway's keyed limiter.
func (g *Gateway) Limiter() *ratelimit.Keyed {
	return g.limiter
}

// Close releases background resources owned by the gateway.
func (g *Gateway) Close() {
	if g.ownsLimiter {
		g.limiter.Stop()
	}
}

// Execute runs the operation through the full decision pipeline and
// returns a uniform Outcome. The gateway never panics the caller and
// never swallows an error: every terminal result is either the
// operation's own error or a named short circuit.
func (g *Gateway) Execute(ctx context.Context, key string, op Operation) Outcome {
	start := time.Now()

	if !g.limiter.Allow(key) {
		return g.finish(ctx, key, Outcome{
			Kind:     KindShortCircuited,
			Reason:   ReasonRateLimited,
			Err:      ErrRateLimited,
			Duration: time.Since(start),
		})
	}

	if g.bulkhead != nil {
		if !g.bulkhead.TryAcquire() {
			return g.finish(ctx, key, Outcome{
				Kind:     KindShortCircuited,
				Reason:   ReasonConcurrencyLimited,
				Err:      ErrConcurrencyLimited,
				Duration: time.Since(start),
			})
		}
		defer g.bulkhead.Release()
	}

	// Per-call state shared between the attempt closure and the
	// OnRetry hook, so retry events can carry the attempt's latency.
	attempts := 0
	var lastLatency time.Duration

	gateFn := func() error {
		// The initial admission already consumed a token; every retry
		// re-admits so a retry storm pays per attempt.
		if attempts > 0 && !g.limiter.Allow(key) {
			return ErrRateLimited
		}
		if !g.breaker.Allow() {
			return breaker.ErrCircuitOpen
		}
		return nil
	}

	attempt := func(ctx context.Context) error {
		attempts++
		began := time.Now()
		err := g.runAttempt(ctx, op)
		lastLatency = time.Since(began)
		g.breaker.RecordOutcome(err)
		return err
	}

	cfg := g.retryCfg
	userOnRetry := cfg.OnRetry
	cfg.OnRetry = func(n int, err error, delay time.Duration) {
		g.sink.Emit(ctx, Event{
			Key:          key,
			Attempt:      n,
			Kind:         KindFailure,
			Err:          err,
			BreakerState: g.breaker.State(),
			Delay:        delay,
			Latency:      lastLatency,
		})
		if userOnRetry != nil {
			userOnRetry(n, err, delay)
		}
	}

	err := retry.New(cfg).ExecuteGated(ctx, gateFn, attempt)

	out := Outcome{Attempts: attempts, Duration: time.Since(start)}
	switch {
	case err == nil:
		out.Kind = KindSuccess
	case errors.Is(err, breaker.ErrCircuitOpen):
		out.Kind = KindShortCircuited
		out.Reason = ReasonCircuitOpen
		out.Err = err
	case errors.Is(err, ErrRateLimited):
		out.Kind = KindShortCircuited
		out.Reason = ReasonRateLimited
		out.Err = err
	default:
		out.Kind = KindFailure
		out.Err = err
		out.Retryable = g.retryCfg.RetryIf(err)
	}

	return g.finish(ctx, key, out)
}

// runAttempt wraps one operation invocation with the per-attempt
// timeout. The operation runs in its own goroutine so a hung call
// cannot hold the retry loop past the deadline; the abandoned goroutine
// observes its context cancellation and unwinds on its own.
func (g *Gateway) runAttempt(ctx context.Context, op Operation) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrAttemptTimeout
		}
		return ctx.Err()
	}
}

func (g *Gateway) finish(ctx context.Context, key string, out Outcome) Outcome {
	g.sink.Emit(ctx, Event{
		Key:          key,
		Attempt:      out.Attempts,
		Kind:         out.Kind,
		Reason:       out.Reason,
		Err:          out.Err,
		BreakerState: g.breaker.State(),
		Latency:      out.Duration,
		Final:        true,
	})
	return out
}
