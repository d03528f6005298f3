package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/callguard/observe"
)

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Store: NewMemoryStoreWithClock(clock.Now),
		Clock: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManager_RequiresStore(t *testing.T) {
	_, err := NewManager(Config{})
	if !errors.Is(err, ErrNilStore) {
		t.Fatalf("NewManager() error = %v, want ErrNilStore", err)
	}
}

func TestManager_CheckPassesUnderLimits(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{RequestsPerWindow: 10, UnitsPerPeriod: 100, MaxConcurrent: 2}

	ok, reason := m.Check(ctx, "acme", limits)
	if !ok || reason != "" {
		t.Fatalf("Check() = %v, %q, want true, \"\"", ok, reason)
	}
}

func TestManager_RequestLimitEnforced(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{RequestsPerWindow: 3, Window: time.Hour}

	for i := 0; i < 3; i++ {
		ok, _ := m.Check(ctx, "acme", limits)
		if !ok {
			t.Fatalf("Check() %d = false, want true", i+1)
		}
		m.Record(ctx, "acme", limits, 0)
	}

	ok, reason := m.Check(ctx, "acme", limits)
	if ok || reason != ReasonRequestsExceeded {
		t.Errorf("Check() = %v, %q, want false, %q", ok, reason, ReasonRequestsExceeded)
	}
}

func TestManager_RequestWindowRolls(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestManager(t, clock)

	limits := Limits{RequestsPerWindow: 1, Window: time.Hour}

	m.Record(ctx, "acme", limits, 0)
	if ok, _ := m.Check(ctx, "acme", limits); ok {
		t.Fatal("Check() = true inside exhausted window, want false")
	}

	clock.Advance(time.Hour)
	if ok, _ := m.Check(ctx, "acme", limits); !ok {
		t.Error("Check() = false after window rolled, want true")
	}
}

func TestManager_UnitLimitEnforced(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{UnitsPerPeriod: 1000, Period: 30 * 24 * time.Hour}

	m.Record(ctx, "acme", limits, 400)
	if ok, _ := m.Check(ctx, "acme", limits); !ok {
		t.Fatal("Check() = false under unit limit, want true")
	}

	m.Record(ctx, "acme", limits, 600)
	ok, reason := m.Check(ctx, "acme", limits)
	if ok || reason != ReasonUnitsExceeded {
		t.Errorf("Check() = %v, %q, want false, %q", ok, reason, ReasonUnitsExceeded)
	}
}

func TestManager_ConcurrencySlots(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{MaxConcurrent: 2}

	if !m.Acquire(ctx, "acme", limits) || !m.Acquire(ctx, "acme", limits) {
		t.Fatal("Acquire() within limit = false, want true")
	}
	if m.Acquire(ctx, "acme", limits) {
		t.Error("Acquire() beyond limit = true, want false")
	}

	// A rejected acquire must not leak a slot.
	m.Release(ctx, "acme")
	if !m.Acquire(ctx, "acme", limits) {
		t.Error("Acquire() after Release = false, want true")
	}
}

func TestManager_CheckReportsConcurrency(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{MaxConcurrent: 1}
	m.Acquire(ctx, "acme", limits)

	ok, reason := m.Check(ctx, "acme", limits)
	if ok || reason != ReasonConcurrencyExceeded {
		t.Errorf("Check() = %v, %q, want false, %q", ok, reason, ReasonConcurrencyExceeded)
	}
}

func TestManager_TenantsIsolated(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{RequestsPerWindow: 1}
	m.Record(ctx, "acme", limits, 0)

	if ok, _ := m.Check(ctx, "acme", limits); ok {
		t.Error("Check(acme) = true, want false")
	}
	if ok, _ := m.Check(ctx, "globex", limits); !ok {
		t.Error("Check(globex) = false, want true")
	}
}

func TestManager_UsageReportsAllDimensions(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	limits := Limits{RequestsPerWindow: 100, UnitsPerPeriod: 10000, MaxConcurrent: 5}

	m.Record(ctx, "acme", limits, 1500)
	m.Record(ctx, "acme", limits, 500)
	m.Acquire(ctx, "acme", limits)

	usage := m.Usage(ctx, "acme", limits)
	if usage.Requests != 2 {
		t.Errorf("Usage.Requests = %d, want 2", usage.Requests)
	}
	if usage.Units != 2000 {
		t.Errorf("Usage.Units = %d, want 2000", usage.Units)
	}
	if usage.Concurrent != 1 {
		t.Errorf("Usage.Concurrent = %d, want 1", usage.Concurrent)
	}
}

func TestManager_ZeroLimitsMeanUnlimited(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeClock())

	for i := 0; i < 50; i++ {
		m.Record(ctx, "acme", Limits{}, 100)
	}
	if ok, reason := m.Check(ctx, "acme", Limits{}); !ok {
		t.Errorf("Check() with zero limits = false (%s), want true", reason)
	}
	if !m.Acquire(ctx, "acme", Limits{}) {
		t.Error("Acquire() with zero MaxConcurrent = false, want true")
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (int64, error) {
	return 0, errors.New("store down")
}
func (failingStore) IncrBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}
func (failingStore) Decr(context.Context, string) (int64, error) {
	return 0, errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error {
	return errors.New("store down")
}

func TestManager_StoreFailureFailsOpen(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	m, err := NewManager(Config{
		Store:  failingStore{},
		Logger: observe.NewLoggerWithWriter("info", &buf),
	})
	if err != nil {
		t.Fatal(err)
	}

	limits := Limits{RequestsPerWindow: 1, MaxConcurrent: 1}

	// Record must not panic or surface the error.
	m.Record(ctx, "acme", limits, 10)

	// Checks read zero usage and admit.
	if ok, _ := m.Check(ctx, "acme", limits); !ok {
		t.Error("Check() with broken store = false, want fail-open true")
	}
	if !m.Acquire(ctx, "acme", limits) {
		t.Error("Acquire() with broken store = false, want fail-open true")
	}

	// Failures were logged.
	if !strings.Contains(buf.String(), "store down") {
		t.Error("expected store failure to be logged")
	}
}

func TestManager_ViolationLogged(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	var buf bytes.Buffer
	m, err := NewManager(Config{
		Store:  NewMemoryStoreWithClock(clock.Now),
		Logger: observe.NewLoggerWithWriter("info", &buf),
		Clock:  clock.Now,
	})
	if err != nil {
		t.Fatal(err)
	}

	limits := Limits{RequestsPerWindow: 1}
	m.Record(ctx, "acme", limits, 0)
	m.Check(ctx, "acme", limits)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("bad log output: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", entry["tenant"])
	}
	if entry["limit"] != float64(1) {
		t.Errorf("limit = %v, want 1", entry["limit"])
	}
}
