package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/callguard/ratelimit"
)

// LimiterChecker reports keyed rate limiter occupancy. The limiter has
// no failure mode of its own, so the checker degrades only when the
// tracked-key count crosses a configured ceiling, which usually points
// at a key-cardinality problem upstream.
type LimiterChecker struct {
	name    string
	limiter *ratelimit.Keyed

	// MaxKeys is the tracked-key count above which the checker reports
	// degraded. Zero disables the ceiling.
	MaxKeys int
}

// NewLimiterChecker creates a checker over a keyed limiter.
func NewLimiterChecker(name string, limiter *ratelimit.Keyed) *LimiterChecker {
	if name == "" {
		name = "limiter"
	}
	return &LimiterChecker{name: name, limiter: limiter}
}

// Name returns the name of this checker.
func (c *LimiterChecker) Name() string {
	return c.name
}

// Check reports limiter occupancy.
func (c *LimiterChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	keys := c.limiter.Len()
	details := map[string]any{
		"tracked_keys": keys,
	}

	if c.MaxKeys > 0 && keys > c.MaxKeys {
		return Degraded(
			fmt.Sprintf("tracking %d keys, ceiling %d", keys, c.MaxKeys),
		).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("tracking %d keys", keys)).WithDetails(details)
}
