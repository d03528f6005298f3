package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/callguard/breaker"
)

// BreakerChecker reports a circuit breaker's state as health: closed is
// healthy, half-open is degraded (probing), open is unhealthy.
type BreakerChecker struct {
	name string
	b    *breaker.Breaker
}

// NewBreakerChecker creates a checker for one breaker. The checker
// name defaults to the breaker's configured name.
func NewBreakerChecker(b *breaker.Breaker) *BreakerChecker {
	return &BreakerChecker{name: b.Name(), b: b}
}

// Name returns the name of this checker.
func (c *BreakerChecker) Name() string {
	if c.name == "" {
		return "breaker"
	}
	return c.name
}

// Check maps the breaker's current state onto a health result. Details
// carry the snapshot counters for incident triage.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	snap := c.b.Snapshot()
	details := map[string]any{
		"state":     snap.State.String(),
		"failures":  snap.Failures,
		"successes": snap.Successes,
	}
	if !snap.LastFailure.IsZero() {
		details["last_failure"] = snap.LastFailure.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	switch snap.State {
	case breaker.StateClosed:
		return Healthy("circuit closed").WithDetails(details)
	case breaker.StateHalfOpen:
		return Degraded("circuit probing recovery").WithDetails(details)
	default:
		return Unhealthy("circuit open", breaker.ErrCircuitOpen).WithDetails(details)
	}
}

// RegistryChecker reports the combined health of every breaker in a
// registry. One open circuit makes the whole check unhealthy; one
// half-open circuit makes it degraded.
type RegistryChecker struct {
	name     string
	registry *breaker.Registry
}

// NewRegistryChecker creates a checker over a breaker registry.
func NewRegistryChecker(name string, registry *breaker.Registry) *RegistryChecker {
	if name == "" {
		name = "breakers"
	}
	return &RegistryChecker{name: name, registry: registry}
}

// Name returns the name of this checker.
func (c *RegistryChecker) Name() string {
	return c.name
}

// Check inspects every registered breaker's snapshot.
func (c *RegistryChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	snapshots := c.registry.Snapshots()
	if len(snapshots) == 0 {
		return Healthy("no breakers registered")
	}

	details := make(map[string]any, len(snapshots))
	var open, halfOpen int
	for name, snap := range snapshots {
		details[name] = snap.State.String()
		switch snap.State {
		case breaker.StateOpen:
			open++
		case breaker.StateHalfOpen:
			halfOpen++
		}
	}

	switch {
	case open > 0:
		return Unhealthy(
			fmt.Sprintf("%d of %d circuits open", open, len(snapshots)),
			breaker.ErrCircuitOpen,
		).WithDetails(details)
	case halfOpen > 0:
		return Degraded(
			fmt.Sprintf("%d of %d circuits probing", halfOpen, len(snapshots)),
		).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("all %d circuits closed", len(snapshots))).WithDetails(details)
	}
}
