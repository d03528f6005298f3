package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSharedBreaker_TripAndRecover(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	store := NewMemoryStore()
	b := NewShared(Config{
		Name:             "api",
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Second,
		Clock:            clk.Now,
	}, store)

	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		ok, err := b.Allow(ctx)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !ok {
			t.Fatalf("Allow() = false after %d failures, want true", i)
		}
		if err := b.RecordOutcome(ctx, boom); err != nil {
			t.Fatalf("RecordOutcome() error = %v", err)
		}
	}

	state, err := b.State(ctx)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state != StateOpen {
		t.Fatalf("state = %v, want open", state)
	}

	if ok, _ := b.Allow(ctx); ok {
		t.Error("Allow() while open = true, want false")
	}

	clk.Advance(10 * time.Second)

	// Probe admitted exactly once.
	if ok, _ := b.Allow(ctx); !ok {
		t.Fatal("probe not admitted after recovery timeout")
	}
	if ok, _ := b.Allow(ctx); ok {
		t.Error("second probe admitted, want refusal")
	}

	if err := b.RecordOutcome(ctx, nil); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	state, _ = b.State(ctx)
	if state != StateClosed {
		t.Errorf("state after probe success = %v, want closed", state)
	}
}

func TestSharedBreaker_StateSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	store := NewMemoryStore()

	cfg := Config{Name: "api", FailureThreshold: 1, Clock: clk.Now}
	replica1 := NewShared(cfg, store)
	replica2 := NewShared(cfg, store)

	if err := replica1.RecordOutcome(ctx, errors.New("boom")); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	// The other replica observes the trip immediately.
	if ok, _ := replica2.Allow(ctx); ok {
		t.Error("replica2 Allow() = true after replica1 tripped, want false")
	}
}

func TestSharedBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	b := NewShared(Config{
		Name:             "api",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		Clock:            clk.Now,
	}, NewMemoryStore())

	b.RecordOutcome(ctx, errors.New("boom"))
	clk.Advance(time.Second)

	if ok, _ := b.Allow(ctx); !ok {
		t.Fatal("probe not admitted")
	}
	b.RecordOutcome(ctx, errors.New("boom"))

	state, _ := b.State(ctx)
	if state != StateOpen {
		t.Errorf("state = %v, want open", state)
	}
	if ok, _ := b.Allow(ctx); ok {
		t.Error("Allow() right after reopen = true, want false")
	}
}

func TestSharedBreaker_Execute(t *testing.T) {
	ctx := context.Background()
	b := NewShared(Config{Name: "api", FailureThreshold: 1}, NewMemoryStore())

	boom := errors.New("boom")
	err := b.Execute(ctx, func(ctx context.Context) error { return boom })
	if err != boom {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}

	err = b.Execute(ctx, func(ctx context.Context) error {
		t.Error("operation invoked while circuit open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestSharedBreaker_SnapshotAndReset(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	b := NewShared(Config{Name: "api", FailureThreshold: 5, Clock: clk.Now}, NewMemoryStore())

	b.RecordOutcome(ctx, errors.New("boom"))
	b.RecordOutcome(ctx, errors.New("boom"))

	snap, err := b.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.State != StateClosed || snap.Failures != 2 {
		t.Errorf("snapshot = %+v, want closed with 2 failures", snap)
	}
	if !snap.LastFailure.Equal(clk.Now()) {
		t.Errorf("LastFailure = %v, want %v", snap.LastFailure, clk.Now())
	}

	if err := b.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	snap, _ = b.Snapshot(ctx)
	if snap.Failures != 0 || snap.State != StateClosed {
		t.Errorf("snapshot after reset = %+v, want zeroed closed", snap)
	}
}

func TestMemoryStore_Atomics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Get on missing key reported ok")
	}

	n, err := s.Incr(ctx, "n", 3)
	if err != nil || n != 3 {
		t.Errorf("Incr() = %d, %v, want 3, nil", n, err)
	}
	n, _ = s.Incr(ctx, "n", -1)
	if n != 2 {
		t.Errorf("Incr(-1) = %d, want 2", n)
	}

	swapped, _ := s.CompareAndSwap(ctx, "s", "", "a")
	if !swapped {
		t.Error("CAS on missing key with empty prev did not swap")
	}
	swapped, _ = s.CompareAndSwap(ctx, "s", "b", "c")
	if swapped {
		t.Error("CAS with wrong prev swapped")
	}

	if err := s.Delete(ctx, "s"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "s"); ok {
		t.Error("key present after Delete")
	}
}
