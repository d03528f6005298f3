// Package breaker implements the circuit breaker guarding calls to an
// unreliable dependency.
//
// A Breaker tracks consecutive failures and moves between three states:
//
//   - Closed: calls pass through. Failures accumulate; at FailureThreshold
//     the circuit opens.
//
//   - Open: calls are refused without touching the dependency. After
//     RecoveryTimeout the next admission check moves the circuit to
//     half-open and lets a probe through.
//
//   - HalfOpen: a limited number of probes are admitted. SuccessThreshold
//     consecutive successes close the circuit; a single failure reopens it.
//
// Breakers are keyed by dependency: create one Breaker (or one Registry
// entry) per protected resource and share it across all callers of that
// resource. State for a breaker shared across processes lives in a Store
// instead; see SharedBreaker.
//
// # Usage
//
//	cb := breaker.New(breaker.Config{
//	    Name:             "payments-api",
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  30 * time.Second,
//	})
//
//	if !cb.Allow() {
//	    return breaker.ErrCircuitOpen
//	}
//	err := callPaymentsAPI(ctx)
//	cb.RecordOutcome(err)
package breaker
