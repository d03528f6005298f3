package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records gateway call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records a single attempt against the protected resource.
	RecordAttempt(ctx context.Context, meta CallMeta)

	// RecordOutcome records the final outcome of a call with its total latency.
	RecordOutcome(ctx context.Context, meta CallMeta, kind string, reason string, duration time.Duration)

	// RecordTransition records a circuit breaker state transition.
	RecordTransition(ctx context.Context, resource, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter           metric.Meter
	attemptCount    metric.Int64Counter
	outcomeCount    metric.Int64Counter
	shortCircuits   metric.Int64Counter
	transitionCount metric.Int64Counter
	latencyHist     metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance from the Observer's meter.
func NewMetrics(obs Observer) (Metrics, error) {
	if obs == nil {
		return &noopMetrics{}, nil
	}
	return newMetrics(obs.Meter())
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attemptCount, err := meter.Int64Counter(
		"call.attempts.total",
		metric.WithDescription("Total number of attempts against protected resources"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	outcomeCount, err := meter.Int64Counter(
		"call.outcomes.total",
		metric.WithDescription("Total number of call outcomes by kind"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	shortCircuits, err := meter.Int64Counter(
		"call.short_circuits.total",
		metric.WithDescription("Total number of calls refused without reaching the resource"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitionCount, err := meter.Int64Counter(
		"call.breaker.transitions.total",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	latencyHist, err := meter.Float64Histogram(
		"call.latency_ms",
		metric.WithDescription("End-to-end call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:           meter,
		attemptCount:    attemptCount,
		outcomeCount:    outcomeCount,
		shortCircuits:   shortCircuits,
		transitionCount: transitionCount,
		latencyHist:     latencyHist,
	}, nil
}

func (m *metricsImpl) callAttrs(meta CallMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("call.resource", meta.Resource),
	}
	if meta.Tenant != "" {
		attrs = append(attrs, attribute.String("call.tenant", meta.Tenant))
	}
	return attrs
}

// RecordAttempt increments the attempt counter.
func (m *metricsImpl) RecordAttempt(ctx context.Context, meta CallMeta) {
	m.attemptCount.Add(ctx, 1, metric.WithAttributes(m.callAttrs(meta)...))
}

// RecordOutcome records the final outcome and latency of a call.
func (m *metricsImpl) RecordOutcome(ctx context.Context, meta CallMeta, kind string, reason string, duration time.Duration) {
	attrs := append(m.callAttrs(meta), attribute.String("call.kind", kind))
	opt := metric.WithAttributes(attrs...)

	m.outcomeCount.Add(ctx, 1, opt)

	if reason != "" {
		scAttrs := append(m.callAttrs(meta), attribute.String("call.reason", reason))
		m.shortCircuits.Add(ctx, 1, metric.WithAttributes(scAttrs...))
	}

	m.latencyHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordTransition records a breaker state change.
func (m *metricsImpl) RecordTransition(ctx context.Context, resource, from, to string) {
	m.transitionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("call.resource", resource),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordAttempt(ctx context.Context, meta CallMeta) {}
func (m *noopMetrics) RecordOutcome(ctx context.Context, meta CallMeta, kind string, reason string, duration time.Duration) {
}
func (m *noopMetrics) RecordTransition(ctx context.Context, resource, from, to string) {}
