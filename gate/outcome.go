package gate

import (
	"context"
	"time"
)

// Operation is the caller-supplied callable performing the actual
// remote call. It is supplied fresh per Execute invocation and must be
// safely re-invocable, since the gateway may run it several times.
type Operation func(ctx context.Context) error

// Kind tags the terminal result of a gateway call.
type Kind int

const (
	// KindSuccess means the operation completed without error.
	KindSuccess Kind = iota
	// KindFailure means the operation was attempted and failed.
	KindFailure
	// KindShortCircuited means the call was refused without attempting
	// the operation. Callers should treat this as "try again later",
	// not as a dependency error.
	KindShortCircuited
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindShortCircuited:
		return "short_circuited"
	default:
		return "unknown"
	}
}

// Short-circuit reasons reported in Outcome.Reason and events.
const (
	ReasonRateLimited        = "rate_limited"
	ReasonCircuitOpen        = "circuit_open"
	ReasonConcurrencyLimited = "concurrency_limited"
)

// Outcome is the uniform result contract returned by Gateway.Execute.
type Outcome struct {
	// Kind tags the result.
	Kind Kind

	// Err is the terminal error for failures and short circuits.
	Err error

	// Retryable reports whether Err was classified retryable. Only
	// meaningful for KindFailure.
	Retryable bool

	// Reason names the guard that refused the call. Only set for
	// KindShortCircuited.
	Reason string

	// Attempts is the number of times the operation was invoked.
	Attempts int

	// Duration is the total wall time spent in Execute, backoff included.
	Duration time.Duration
}

// IsSuccess reports whether the call succeeded.
func (o Outcome) IsSuccess() bool {
	return o.Kind == KindSuccess
}

// IsShortCircuited reports whether the call was refused unattempted.
func (o Outcome) IsShortCircuited() bool {
	return o.Kind == KindShortCircuited
}
