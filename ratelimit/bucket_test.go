package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBucket_StartsFull(t *testing.T) {
	b := NewBucket(Config{Capacity: 5, Rate: 1})

	// Full capacity is available as an initial burst.
	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("Allow() %d = false, want true", i+1)
		}
	}
	if b.Allow() {
		t.Error("Allow() beyond capacity = true, want false")
	}
}

func TestBucket_NoRefillWhenRateZero(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(Config{Capacity: 1, Rate: 0, Clock: clk.Now})

	if !b.Allow() {
		t.Fatal("first Allow() = false, want true")
	}
	clk.Advance(time.Hour)
	if b.Allow() {
		t.Error("Allow() with zero rate refilled, want permanent rejection")
	}
}

func TestBucket_LazyRefill(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(Config{Capacity: 10, Rate: 2, Clock: clk.Now})

	for i := 0; i < 10; i++ {
		b.Allow()
	}
	if b.Allow() {
		t.Fatal("bucket not drained")
	}

	clk.Advance(1500 * time.Millisecond)

	// 1.5s at 2 tokens/s refills 3 tokens.
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("Allow() %d after refill = false, want true", i+1)
		}
	}
	if b.Allow() {
		t.Error("Allow() past refilled amount = true, want false")
	}
}

func TestBucket_RefillClampsAtCapacity(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(Config{Capacity: 3, Rate: 100, Clock: clk.Now})

	clk.Advance(time.Hour)

	if got := b.Tokens(); got != 3 {
		t.Errorf("Tokens() after long idle = %v, want capacity 3", got)
	}
}

func TestBucket_NeverExceedsCapacityAdmissions(t *testing.T) {
	clk := newFakeClock()
	b := NewBucket(Config{Capacity: 4, Rate: 0, Clock: clk.Now})

	// From a full bucket with no refill, at most Capacity admissions
	// succeed in any window.
	admitted := 0
	for i := 0; i < 100; i++ {
		if b.Allow() {
			admitted++
		}
	}
	if admitted != 4 {
		t.Errorf("admitted %d calls, want 4", admitted)
	}
}

func TestBucket_AllowN(t *testing.T) {
	b := NewBucket(Config{Capacity: 5, Rate: 0})

	if !b.AllowN(3) {
		t.Fatal("AllowN(3) = false, want true")
	}
	if b.AllowN(3) {
		t.Error("AllowN(3) with 2 tokens left = true, want false")
	}
	if !b.AllowN(2) {
		t.Error("AllowN(2) = false, want true")
	}
}

func TestBucket_Reset(t *testing.T) {
	b := NewBucket(Config{Capacity: 2, Rate: 0})
	b.Allow()
	b.Allow()

	b.Reset()
	if got := b.Tokens(); got != 2 {
		t.Errorf("Tokens() after Reset = %v, want 2", got)
	}
}

func TestConfig_Defaults(t *testing.T) {
	b := NewBucket(Config{Rate: 50})
	if b.Capacity() != 50 {
		t.Errorf("default capacity = %v, want Rate (50)", b.Capacity())
	}

	b = NewBucket(Config{})
	if b.Capacity() != 1 {
		t.Errorf("zero-config capacity = %v, want 1", b.Capacity())
	}
}

func TestBucket_ConcurrentAdmission(t *testing.T) {
	b := NewBucket(Config{Capacity: 1000, Rate: 0})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if b.Allow() {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if admitted != 1000 {
		t.Errorf("admitted %d, want exactly 1000", admitted)
	}
}

func BenchmarkBucket_Allow(b *testing.B) {
	bucket := NewBucket(Config{Capacity: 1e9, Rate: 1e9})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bucket.Allow()
	}
}
