package ratelimit

import (
	"sync"
	"time"
)

// KeyedConfig configures a Keyed limiter.
type KeyedConfig struct {
	// Bucket is the per-key bucket configuration.
	Bucket Config

	// IdleTTL is how long an unused key's bucket is kept before
	// eviction. An evicted key starts over with a full bucket.
	// Default: 10 minutes
	IdleTTL time.Duration

	// CleanupInterval is how often the eviction sweep runs.
	// Default: 1 minute
	CleanupInterval time.Duration
}

// Keyed is a map of token buckets, one per key. Each bucket carries its
// own lock via Bucket; the outer lock only guards the map, so admission
// checks for different keys contend only on map access.
type Keyed struct {
	config KeyedConfig

	mu      sync.Mutex
	entries map[string]*keyedEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

type keyedEntry struct {
	bucket   *Bucket
	lastSeen time.Time
}

// NewKeyed creates a keyed limiter and starts its background eviction
// sweep. Call Stop when the limiter is no longer needed.
func NewKeyed(config KeyedConfig) *Keyed {
	config.Bucket.applyDefaults()
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	k := &Keyed{
		config:  config,
		entries: make(map[string]*keyedEntry),
		stopCh:  make(chan struct{}),
	}
	go k.cleanupLoop()
	return k
}

// Allow consumes one token from the key's bucket, creating the bucket
// at full capacity on the key's first admission check.
func (k *Keyed) Allow(key string) bool {
	return k.bucketFor(key).Allow()
}

// Tokens returns the tokens currently available for the key. A key that
// has never been seen reports full capacity, since its first admission
// would create a full bucket.
func (k *Keyed) Tokens(key string) float64 {
	k.mu.Lock()
	entry, ok := k.entries[key]
	k.mu.Unlock()

	if !ok {
		return k.config.Bucket.Capacity
	}
	return entry.bucket.Tokens()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Stop terminates the background eviction sweep.
func (k *Keyed) Stop() {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})
}

func (k *Keyed) bucketFor(key string) *Bucket {
	now := k.config.Bucket.Clock()

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{bucket: NewBucket(k.config.Bucket)}
		k.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.bucket
}

func (k *Keyed) cleanupLoop() {
	ticker := time.NewTicker(k.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.evictStale()
		case <-k.stopCh:
			return
		}
	}
}

func (k *Keyed) evictStale() {
	now := k.config.Bucket.Clock()

	k.mu.Lock()
	defer k.mu.Unlock()

	for key, entry := range k.entries {
		if now.Sub(entry.lastSeen) > k.config.IdleTTL {
			delete(k.entries, key)
		}
	}
}
