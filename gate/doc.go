// Package gate composes rate limiting, circuit breaking, retry, and
// per-attempt timeouts into one call gateway for an unreliable remote
// dependency.
//
// A Gateway mediates every call to one protected resource. The decision
// pipeline for Execute is:
//
//  1. Rate limiter admission for the caller's key. A refusal
//     short-circuits with reason "rate_limited" before the breaker or
//     the operation is touched. Retries re-admit through the limiter,
//     so one caller's retry storm cannot starve others.
//
//  2. Bulkhead admission (optional). A full bulkhead short-circuits
//     with reason "concurrency_limited".
//
//  3. The retry loop, gated by the circuit breaker before every
//     attempt. An open circuit is terminal, not a retryable failure.
//     Each attempt runs under its own timeout so a hung call cannot
//     stall the retry budget, and each attempt's outcome is recorded to
//     the breaker.
//
// Every attempt and every terminal outcome is reported to the
// configured Sink; the gateway emits events but does not format, store,
// or export them.
//
// # Usage
//
//	gw := gate.New(gate.Config{
//	    Name:    "llm-api",
//	    Breaker: breaker.Config{FailureThreshold: 5},
//	    Limiter: ratelimit.KeyedConfig{Bucket: ratelimit.Config{Capacity: 20, Rate: 10}},
//	    Retry:   retry.Config{MaxAttempts: 3},
//	})
//	defer gw.Close()
//
//	out := gw.Execute(ctx, tenantID, func(ctx context.Context) error {
//	    return callModel(ctx, prompt)
//	})
//	if out.IsShortCircuited() {
//	    // try again later; the dependency was never invoked
//	}
package gate
