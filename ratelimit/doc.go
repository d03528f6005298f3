// Package ratelimit implements token bucket rate limiting for call
// admission.
//
// A Bucket holds up to Capacity tokens and refills at Rate tokens per
// second. Refill is lazy: tokens are computed from elapsed time at each
// admission check, so no background goroutine runs per bucket. A fresh
// bucket starts full, which allows an initial burst.
//
// Keyed manages one bucket per key (per user, per tenant, per upstream)
// behind a single Allow(key) call, creating buckets on first use and
// evicting entries that have been idle past a TTL.
//
// Admission never blocks and never errors: Allow returns false when the
// bucket is empty and the caller decides what a rejection means.
package ratelimit
