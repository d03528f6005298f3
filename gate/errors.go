package gate

import "errors"

// Sentinel errors for gateway short circuits and attempt timeouts.
var (
	// ErrRateLimited is returned when limiter admission is refused.
	ErrRateLimited = errors.New("gate: rate limited")

	// ErrConcurrencyLimited is returned when the bulkhead is full.
	ErrConcurrencyLimited = errors.New("gate: concurrency limited")

	// ErrAttemptTimeout is returned when a single attempt exceeds the
	// per-attempt timeout. It is retryable like any other failure,
	// subject to the retry classifier.
	ErrAttemptTimeout = errors.New("gate: attempt timed out")
)
