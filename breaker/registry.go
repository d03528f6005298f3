package breaker

import "sync"

// Registry holds one breaker per protected dependency name. Many
// gateways may share a breaker by resolving it through the same
// registry; each breaker carries its own lock, so two dependencies
// never contend with each other.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
	}
}

// Configure registers a new breaker under the given name. A breaker's
// configuration may not be changed after registration; configuring the
// same name twice returns ErrAlreadyConfigured.
func (r *Registry) Configure(name string, config Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breakers[name]; ok {
		return ErrAlreadyConfigured
	}

	config.Name = name
	r.breakers[name] = New(config)
	return nil
}

// Get returns the breaker registered under the given name.
func (r *Registry) Get(name string) (*Breaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.breakers[name]
	if !ok {
		return nil, ErrNotConfigured
	}
	return b, nil
}

// GetOrCreate returns the breaker registered under the given name,
// creating it with the given config on first use.
func (r *Registry) GetOrCreate(name string, config Config) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another caller may have won.
	if b, ok := r.breakers[name]; ok {
		return b
	}

	config.Name = name
	b = New(config)
	r.breakers[name] = b
	return b
}

// Names returns the names of all registered breakers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Snapshots returns a snapshot of every registered breaker.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make(map[string]Snapshot, len(r.breakers))
	for name, b := range r.breakers {
		snaps[name] = b.Snapshot()
	}
	return snaps
}

// ResetAll returns every registered breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
