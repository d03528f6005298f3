package breaker

import (
	"context"
	"strconv"
	"sync"
)

// Store is shared storage for breaker state, used when several replicas
// must agree on one circuit. A single in-process Breaker is not enough
// once the caller is scaled horizontally: each replica would trip and
// recover on its own schedule.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: Incr and CompareAndSwap must be atomic with respect to
//   all other operations on the same key.
// - Errors: operations return an error only on storage failure; a
//   missing key is not an error.
type Store interface {
	// Get retrieves a value. Returns ok=false on a missing key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores a value unconditionally.
	Set(ctx context.Context, key, value string) error

	// Incr atomically adds delta to the integer stored at key, treating
	// a missing key as zero, and returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// CompareAndSwap atomically replaces the value at key with next if
	// the current value equals prev. A missing key compares equal to
	// the empty string.
	CompareAndSwap(ctx context.Context, key, prev, next string) (swapped bool, err error)

	// Delete removes a key. Idempotent - no error on a missing key.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store implementation. It gives one
// process the SharedBreaker code path and serves as the reference for
// external implementations (Redis, etcd) that satisfy the same
// atomicity contract.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// Get retrieves a value. Returns ok=false on a missing key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[key]
	return value, ok, nil
}

// Set stores a value unconditionally.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Incr atomically adds delta to the integer stored at key.
func (s *MemoryStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := strconv.ParseInt(s.data[key], 10, 64)
	current += delta
	s.data[key] = strconv.FormatInt(current, 10)
	return current, nil
}

// CompareAndSwap atomically replaces prev with next at key.
func (s *MemoryStore) CompareAndSwap(_ context.Context, key, prev, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[key] != prev {
		return false, nil
	}
	s.data[key] = next
	return true, nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
