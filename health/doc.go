// Package health reports the health of gateway components.
//
// A Checker is any component that can report its health status:
// Healthy, Degraded, or Unhealthy. BreakerChecker maps circuit states
// onto health (closed is healthy, half-open is degraded, open is
// unhealthy), RegistryChecker aggregates every breaker in a registry,
// and LimiterChecker reports keyed limiter occupancy.
//
// Use Aggregator to combine checkers into a single composite check and
// the HTTP handlers to expose the result:
//
//	agg := health.NewAggregator()
//	agg.Register("payments", health.NewBreakerChecker(paymentsBreaker))
//	agg.Register("limiter", health.NewLimiterChecker("limiter", keyed))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
