// Package retry implements retry with backoff for failed call attempts.
//
// A Policy re-invokes an operation up to MaxAttempts times, suspending
// between attempts for a delay computed from the configured backoff
// strategy plus bounded random jitter. The suspension is a timer wait
// that honors context cancellation; it never busy-waits.
//
// Two rules bound every retry loop:
//
//   - A non-retryable error (per the RetryIf classifier) is returned
//     immediately, even when attempts remain.
//
//   - ExecuteGated consults a gate before every attempt. A gate refusal
//     is terminal: the gate's error is returned and never retried. The
//     gate is how a circuit breaker or rate limiter vetoes attempts.
package retry
