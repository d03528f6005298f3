// Package quota enforces multi-tenant resource quotas across three
// dimensions: request rate per window, consumable units per period,
// and concurrent executions.
//
// Counters live in an atomic key-value Store keyed by tenant and time
// window, so several replicas sharing a store enforce one combined
// quota. MemoryStore is the single-process reference implementation.
//
// Accounting is best-effort: a store write failure is logged and
// never surfaces to the caller, so a flaky counter backend cannot
// take down request handling.
package quota
