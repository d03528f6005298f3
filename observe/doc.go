// Package observe provides telemetry for gateway calls.
//
// It is a pure instrumentation library: no execution, no transport, no
// I/O beyond exporter setup. An Observer bundles an OpenTelemetry
// tracer and meter with a JSON structured logger; NewSink turns an
// Observer into a gate.Sink so gateway events flow into metrics and
// logs, and Tracer wraps call executions in spans.
package observe
