package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/callguard/observe"
)

// Violation reasons returned by Check.
const (
	ReasonRequestsExceeded    = "requests_exceeded"
	ReasonUnitsExceeded       = "units_exceeded"
	ReasonConcurrencyExceeded = "concurrency_exceeded"
)

// ErrNilStore indicates a Manager was constructed without a Store.
var ErrNilStore = errors.New("quota: store is required")

// Limits holds a tenant's resource quotas.
type Limits struct {
	// RequestsPerWindow caps admitted requests inside each Window.
	// Zero means unlimited.
	RequestsPerWindow int64

	// Window is the request-counting window. Defaults to one hour.
	Window time.Duration

	// UnitsPerPeriod caps consumable units (tokens, cost cents) inside
	// each Period. Zero means unlimited.
	UnitsPerPeriod int64

	// Period is the unit-counting window. Defaults to 30 days.
	Period time.Duration

	// MaxConcurrent caps in-flight executions. Zero means unlimited.
	MaxConcurrent int64
}

func (l Limits) window() time.Duration {
	if l.Window <= 0 {
		return time.Hour
	}
	return l.Window
}

func (l Limits) period() time.Duration {
	if l.Period <= 0 {
		return 30 * 24 * time.Hour
	}
	return l.Period
}

// Usage is a tenant's current consumption.
type Usage struct {
	Requests   int64 `json:"requests"`
	Units      int64 `json:"units"`
	Concurrent int64 `json:"concurrent"`
}

// Config configures a Manager.
type Config struct {
	// Store holds the counters. Required.
	Store Store

	// Logger receives violation and accounting-failure records.
	// Optional; nil disables logging.
	Logger observe.Logger

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Manager checks and records per-tenant quota consumption.
type Manager struct {
	store  Store
	logger observe.Logger
	clock  func() time.Time
}

// NewManager creates a quota manager over the given store.
func NewManager(config Config) (*Manager, error) {
	if config.Store == nil {
		return nil, ErrNilStore
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		store:  config.Store,
		logger: config.Logger,
		clock:  clock,
	}, nil
}

// Check reports whether tenant is within limits. On refusal the second
// return value names the exhausted dimension.
func (m *Manager) Check(ctx context.Context, tenant string, limits Limits) (bool, string) {
	usage := m.Usage(ctx, tenant, limits)

	if limits.RequestsPerWindow > 0 && usage.Requests >= limits.RequestsPerWindow {
		m.warn(ctx, "quota exceeded: requests", tenant,
			observe.Field{Key: "requests", Value: usage.Requests},
			observe.Field{Key: "limit", Value: limits.RequestsPerWindow},
		)
		return false, ReasonRequestsExceeded
	}

	if limits.UnitsPerPeriod > 0 && usage.Units >= limits.UnitsPerPeriod {
		m.warn(ctx, "quota exceeded: units", tenant,
			observe.Field{Key: "units", Value: usage.Units},
			observe.Field{Key: "limit", Value: limits.UnitsPerPeriod},
		)
		return false, ReasonUnitsExceeded
	}

	if limits.MaxConcurrent > 0 && usage.Concurrent >= limits.MaxConcurrent {
		m.warn(ctx, "quota exceeded: concurrency", tenant,
			observe.Field{Key: "concurrent", Value: usage.Concurrent},
			observe.Field{Key: "limit", Value: limits.MaxConcurrent},
		)
		return false, ReasonConcurrencyExceeded
	}

	return true, ""
}

// Record accounts one admitted request plus its consumed units.
// Accounting is best-effort: store failures are logged, never returned.
func (m *Manager) Record(ctx context.Context, tenant string, limits Limits, units int64) {
	now := m.clock()

	window := limits.window()
	if _, err := m.store.IncrBy(ctx, m.requestsKey(tenant, now, window), 1, window); err != nil {
		m.logStoreError(ctx, "request accounting failed", tenant, err)
	}

	if units > 0 {
		period := limits.period()
		if _, err := m.store.IncrBy(ctx, m.unitsKey(tenant, now, period), units, period); err != nil {
			m.logStoreError(ctx, "unit accounting failed", tenant, err)
		}
	}
}

// Usage returns the tenant's current consumption across all dimensions.
// Unreadable counters are reported as zero.
func (m *Manager) Usage(ctx context.Context, tenant string, limits Limits) Usage {
	now := m.clock()

	requests, err := m.store.Get(ctx, m.requestsKey(tenant, now, limits.window()))
	if err != nil {
		m.logStoreError(ctx, "request counter read failed", tenant, err)
	}

	units, err := m.store.Get(ctx, m.unitsKey(tenant, now, limits.period()))
	if err != nil {
		m.logStoreError(ctx, "unit counter read failed", tenant, err)
	}

	concurrent, err := m.store.Get(ctx, m.concurrentKey(tenant))
	if err != nil {
		m.logStoreError(ctx, "concurrency counter read failed", tenant, err)
	}

	return Usage{Requests: requests, Units: units, Concurrent: concurrent}
}

// Acquire claims a concurrent execution slot. When the claim pushes the
// tenant over MaxConcurrent the slot is returned and Acquire reports false.
func (m *Manager) Acquire(ctx context.Context, tenant string, limits Limits) bool {
	if limits.MaxConcurrent <= 0 {
		return true
	}

	n, err := m.store.IncrBy(ctx, m.concurrentKey(tenant), 1, 0)
	if err != nil {
		m.logStoreError(ctx, "slot acquire failed", tenant, err)
		// Fail open: a broken counter backend must not block traffic.
		return true
	}
	if n > limits.MaxConcurrent {
		if _, err := m.store.Decr(ctx, m.concurrentKey(tenant)); err != nil {
			m.logStoreError(ctx, "slot rollback failed", tenant, err)
		}
		return false
	}
	return true
}

// Release returns a concurrent execution slot.
func (m *Manager) Release(ctx context.Context, tenant string) {
	if _, err := m.store.Decr(ctx, m.concurrentKey(tenant)); err != nil {
		m.logStoreError(ctx, "slot release failed", tenant, err)
	}
}

func (m *Manager) requestsKey(tenant string, now time.Time, window time.Duration) string {
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("tenant:%s:req:%d", tenant, bucket)
}

func (m *Manager) unitsKey(tenant string, now time.Time, period time.Duration) string {
	bucket := now.UnixNano() / int64(period)
	return fmt.Sprintf("tenant:%s:units:%d", tenant, bucket)
}

func (m *Manager) concurrentKey(tenant string) string {
	return fmt.Sprintf("tenant:%s:concurrent", tenant)
}

func (m *Manager) warn(ctx context.Context, msg, tenant string, fields ...observe.Field) {
	if m.logger == nil {
		return
	}
	fields = append([]observe.Field{{Key: "tenant", Value: tenant}}, fields...)
	m.logger.Warn(ctx, msg, fields...)
}

func (m *Manager) logStoreError(ctx context.Context, msg, tenant string, err error) {
	if m.logger == nil {
		return
	}
	m.logger.Error(ctx, msg,
		observe.Field{Key: "tenant", Value: tenant},
		observe.Field{Key: "error", Value: err.Error()},
	)
}
