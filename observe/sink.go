package observe

import (
	"context"

	"github.com/jonwraymond/callguard/breaker"
	"github.com/jonwraymond/callguard/gate"
)

// NewSink builds a gate.Sink that forwards gateway events to the
// Observer's metrics and logger. The resource name identifies the
// protected dependency in every metric and log entry.
func NewSink(obs Observer, resource string) (gate.Sink, error) {
	metrics, err := NewMetrics(obs)
	if err != nil {
		return nil, err
	}

	logger := obs.Logger().WithResource(resource)

	return gate.SinkFunc(func(ctx context.Context, ev gate.Event) {
		meta := CallMeta{Resource: resource, Key: ev.Key}

		if !ev.Final {
			metrics.RecordAttempt(ctx, meta)
			logger.Debug(ctx, "call attempt",
				Field{Key: "call.key", Value: ev.Key},
				Field{Key: "attempt", Value: ev.Attempt},
				Field{Key: "breaker.state", Value: ev.BreakerState.String()},
				Field{Key: "retry.delay_ms", Value: ev.Delay.Milliseconds()},
			)
			return
		}

		metrics.RecordOutcome(ctx, meta, ev.Kind.String(), ev.Reason, ev.Latency)

		fields := []Field{
			{Key: "call.key", Value: ev.Key},
			{Key: "attempts", Value: ev.Attempt},
			{Key: "outcome", Value: ev.Kind.String()},
			{Key: "breaker.state", Value: ev.BreakerState.String()},
			{Key: "latency_ms", Value: ev.Latency.Milliseconds()},
		}
		if ev.Reason != "" {
			fields = append(fields, Field{Key: "reason", Value: ev.Reason})
		}
		if ev.Err != nil {
			fields = append(fields, Field{Key: "error", Value: ev.Err.Error()})
		}

		switch ev.Kind {
		case gate.KindSuccess:
			logger.Info(ctx, "call completed", fields...)
		case gate.KindShortCircuited:
			logger.Warn(ctx, "call short-circuited", fields...)
		default:
			logger.Error(ctx, "call failed", fields...)
		}
	}), nil
}

// TransitionHook builds a breaker.Config.OnStateChange callback that
// records transitions as metrics and logs them at warn level.
func TransitionHook(obs Observer) (func(name string, from, to breaker.State), error) {
	metrics, err := NewMetrics(obs)
	if err != nil {
		return nil, err
	}

	logger := obs.Logger()

	return func(name string, from, to breaker.State) {
		ctx := context.Background()
		metrics.RecordTransition(ctx, name, from.String(), to.String())
		logger.Warn(ctx, "breaker state change",
			Field{Key: "call.resource", Value: name},
			Field{Key: "breaker.from", Value: from.String()},
			Field{Key: "breaker.to", Value: to.String()},
		)
	}, nil
}
