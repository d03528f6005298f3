package gate

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Bulkhead caps the number of calls in flight through a gateway so a
// slow dependency cannot absorb every worker. Admission is non-blocking:
// a full bulkhead refuses instead of queueing.
type Bulkhead struct {
	sem      *semaphore.Weighted
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead admitting up to max concurrent calls.
func NewBulkhead(max int64) *Bulkhead {
	if max <= 0 {
		max = 10
	}
	return &Bulkhead{
		sem: semaphore.NewWeighted(max),
	}
}

// TryAcquire claims a slot without blocking.
func (b *Bulkhead) TryAcquire() bool {
	if b.sem.TryAcquire(1) {
		return true
	}
	b.rejected.Add(1)
	return false
}

// Release returns a slot claimed by TryAcquire.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
}

// Rejected returns the number of refused admissions.
func (b *Bulkhead) Rejected() int64 {
	return b.rejected.Load()
}
