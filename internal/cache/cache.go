// Package cache provides time-bounded memoization in front of expensive
// fetches and computations. One Cache instance serves one computation kind;
// correctness of the system must hold identically with caching disabled.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a cache whose config left the limit unset.
const DefaultMaxEntries = 200

type entry[T any] struct {
	value      T
	expiresAt  time.Time
	lastAccess time.Time
}

type call[T any] struct {
	wg  sync.WaitGroup
	val T
	err error
}

// Cache memoizes values per key with a fixed TTL, a bounded entry count with
// least-recently-used eviction, and per-key single-flight computation. A
// non-positive TTL disables the cache entirely: every call computes.
type Cache[T any] struct {
	name       string
	ttl        time.Duration
	maxEntries int
	sweepEvery time.Duration
	now        func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry[T]
	inflight map[string]*call[T]

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock overrides the cache's time source, for deterministic tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

// WithSweep starts a background goroutine dropping expired entries every
// interval. Lazy expiry on read works without it; the sweep only bounds how
// long dead entries hold memory.
func WithSweep[T any](interval time.Duration) Option[T] {
	return func(c *Cache[T]) { c.sweepEvery = interval }
}

// New builds a cache for one computation kind. maxEntries falls back to
// DefaultMaxEntries when non-positive.
func New[T any](name string, maxEntries int, ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		name:       name,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]*entry[T]),
		inflight:   make(map[string]*call[T]),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.sweepEvery > 0 && c.ttl > 0 {
		go c.sweepLoop()
	}
	return c
}

// Name identifies the cache in logs and metrics.
func (c *Cache[T]) Name() string { return c.name }

// GetOrCompute returns the cached value for key, or runs fn and caches its
// result. Concurrent callers for one key share a single computation; waiters
// receive the leader's value and error. Failed computations are never
// cached. The boolean reports whether the value came from the cache.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	if c.ttl <= 0 {
		v, err := fn(ctx)
		return v, false, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			e.lastAccess = c.now()
			v := e.value
			c.mu.Unlock()
			return v, true, nil
		}
		delete(c.entries, key) // expired, treat as absent
	}
	if leader, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		leader.wg.Wait()
		return leader.val, false, leader.err
	}
	leader := &call[T]{}
	leader.wg.Add(1)
	c.inflight[key] = leader
	c.mu.Unlock()

	leader.val, leader.err = fn(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if leader.err == nil {
		c.insertLocked(key, leader.val)
	}
	c.mu.Unlock()
	leader.wg.Done()
	return leader.val, false, leader.err
}

// Invalidate drops one key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep goroutine, if any.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[T]) insertLocked(key string, v T) {
	now := c.now()
	c.entries[key] = &entry[T]{value: v, expiresAt: now.Add(c.ttl), lastAccess: now}
	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.lastAccess.Before(oldest) {
				oldestKey, oldest = k, e.lastAccess
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *Cache[T]) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for k, e := range c.entries {
				if !now.Before(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
