package quota

import (
	"context"
	"sync"
	"time"
)

// Store is an atomic counter store for quota accounting.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: IncrBy and Decr must be atomic read-modify-write
//   operations; two racing IncrBy calls must both be counted.
// - Expiry: a key's TTL is set on first increment and never shortened
//   by later writes; expired keys read as zero.
type Store interface {
	// Get returns the current value for key, zero when absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// IncrBy atomically adds delta to key and returns the new value.
	// When the key is created, ttl sets its lifetime; ttl<=0 means the
	// key never expires.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Decr atomically decrements key, clamping at zero, and returns
	// the new value.
	Decr(ctx context.Context, key string) (int64, error)

	// Delete removes a key. Idempotent.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store for single-process deployments
// and tests. Expired entries are cleaned up lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
	clock   func() time.Time
}

type storeEntry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*storeEntry),
		clock:   time.Now,
	}
}

// NewMemoryStoreWithClock creates a store with an injectable clock.
func NewMemoryStoreWithClock(clock func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*storeEntry),
		clock:   clock,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return entry.value, nil
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		entry = &storeEntry{}
		if ttl > 0 {
			entry.expiresAt = s.clock().Add(ttl)
		}
		s.entries[key] = entry
	}
	entry.value += delta
	return entry.value, nil
}

func (s *MemoryStore) Decr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	if entry.value > 0 {
		entry.value--
	}
	return entry.value, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// live returns the entry for key, dropping it first when expired.
// Caller must hold the lock.
func (s *MemoryStore) live(key string) (*storeEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && s.clock().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
