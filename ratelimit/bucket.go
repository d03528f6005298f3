package ratelimit

import (
	"sync"
	"time"
)

// Config configures a token bucket.
type Config struct {
	// Capacity is the maximum number of tokens the bucket holds.
	// Default: Rate (one second of refill), or 1 when Rate is zero.
	Capacity float64

	// Rate is the refill rate in tokens per second. Zero means the
	// bucket never refills: once drained it stays empty.
	Rate float64

	// Clock overrides the time source. Used by tests.
	Clock func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Rate < 0 {
		c.Rate = 0
	}
	if c.Capacity <= 0 {
		if c.Rate > 0 {
			c.Capacity = c.Rate
		} else {
			c.Capacity = 1
		}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Bucket is a lazily refilled token bucket.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Invariant: 0 <= tokens <= Capacity at every admission check.
type Bucket struct {
	config Config

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewBucket creates a bucket starting at full capacity.
func NewBucket(config Config) *Bucket {
	config.applyDefaults()

	return &Bucket{
		config:     config,
		tokens:     config.Capacity,
		lastRefill: config.Clock(),
	}
}

// Allow consumes one token if available.
func (b *Bucket) Allow() bool {
	return b.AllowN(1)
}

// AllowN consumes n tokens if available.
func (b *Bucket) AllowN(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Tokens returns the number of tokens currently available.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	return b.tokens
}

// Capacity returns the configured capacity.
func (b *Bucket) Capacity() float64 {
	return b.config.Capacity
}

// Reset refills the bucket to capacity.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.config.Capacity
	b.lastRefill = b.config.Clock()
}

func (b *Bucket) refillLocked() {
	now := b.config.Clock()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.tokens += elapsed.Seconds() * b.config.Rate
	if b.tokens > b.config.Capacity {
		b.tokens = b.config.Capacity
	}
}
