// Package query orchestrates server-data fetches: a keyed cache with a
// freshness window, in-flight request deduplication, bounded retry with
// exponential backoff for server-error failures, and explicit invalidation
// after mutations.
package query

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cardtrader/cardtrader/internal/api"
	"github.com/cardtrader/cardtrader/pkg/logger"
)

const (
	defaultStaleAfter      = 5 * time.Minute
	defaultReadRetries     = 3
	defaultMutationRetries = 2
	defaultInitialBackoff  = time.Second
	defaultMaxBackoff      = 30 * time.Second
	defaultMultiplier      = 2.0
)

// Config configures a Cache.
type Config struct {
	// StaleAfter is the freshness window. Reads inside the window are served
	// from the cache without touching the network. Defaults to 5 minutes.
	StaleAfter time.Duration
	// ReadRetries bounds retry attempts for read fetches. Defaults to 3.
	ReadRetries int
	// MutationRetries bounds retry attempts for mutations. Side-effecting
	// operations are repeated less aggressively than idempotent reads.
	// Defaults to 2.
	MutationRetries int
	// InitialBackoff is the delay before the first retry. Defaults to 1s.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff delay. Defaults to 30s.
	MaxBackoff time.Duration
	// BackoffMultiplier is the exponential growth factor. Defaults to 2.
	BackoffMultiplier float64
	// Jitter adds randomness to backoff delays (0.0 to 1.0).
	Jitter float64
	// Logger receives cache activity at debug level and swallowed background
	// refresh failures at warn level. Nil means silent.
	Logger *logger.Logger

	// Now and Sleep are test hooks. Nil means the real clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// FetchFunc produces a fresh value for a cache key.
type FetchFunc func(ctx context.Context) (any, error)

// Stats are cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	StaleHits int64
	Retries   int64
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache is a keyed cache of completed server-data fetches. Identical keys
// never hold divergent values at the same instant; the last completed write
// wins. At most one request per key is in flight at a time.
type Cache struct {
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	hits      int64
	misses    int64
	staleHits int64
	retries   int64
}

// New creates a Cache from cfg, filling in defaults.
func New(cfg Config) *Cache {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.ReadRetries <= 0 {
		cfg.ReadRetries = defaultReadRetries
	}
	if cfg.MutationRetries <= 0 {
		cfg.MutationRetries = defaultMutationRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = defaultMultiplier
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}

	return &Cache{
		cfg:     cfg,
		log:     log,
		now:     now,
		sleep:   sleep,
		entries: make(map[string]*entry),
	}
}

// Get returns the value for key, fetching it when the cache holds nothing
// fresh. Concurrent Gets for the same key share one in-flight fetch. When a
// refresh of a stale entry fails, the stale value is served and the failure
// is logged rather than surfaced.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	if cached, ok := c.fresh(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return cached, nil
	}
	atomic.AddInt64(&c.misses, 1)

	value, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have
		// completed the fetch while this one waited on the group.
		if cached, ok := c.fresh(key); ok {
			return cached, nil
		}
		value, err := c.withRetry(ctx, c.cfg.ReadRetries, fetch)
		if err != nil {
			if stale, ok := c.any(key); ok {
				c.log.Warnf("query: serving stale %q after refresh failure: %v", key, err)
				atomic.AddInt64(&c.staleHits, 1)
				return stale, nil
			}
			return nil, err
		}
		c.store(key, value)
		return value, nil
	})
	return value, err
}

// Mutate runs op with the mutation retry bound and, only on success,
// invalidates the given keys so the next read re-fetches.
func (c *Cache) Mutate(ctx context.Context, op func(ctx context.Context) error, invalidate ...string) error {
	_, err := c.withRetry(ctx, c.cfg.MutationRetries, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	if err != nil {
		return err
	}
	c.Invalidate(invalidate...)
	return nil
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats returns cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		StaleHits: atomic.LoadInt64(&c.staleHits),
		Retries:   atomic.LoadInt64(&c.retries),
	}
}

// fresh returns the cached value when it is inside the freshness window.
func (c *Cache) fresh(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.cfg.StaleAfter {
		return nil, false
	}
	return e.value, true
}

// any returns the cached value regardless of staleness.
func (c *Cache) any(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, fetchedAt: c.now()}
}

// withRetry runs fetch, retrying with exponential backoff only on failures
// that carry a server-error status. Client errors, transport errors without
// a status, and context cancellation surface immediately: a timed-out
// request may already have had server-side effect, so it is never repeated.
func (c *Cache) withRetry(ctx context.Context, maxRetries int, fetch FetchFunc) (any, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		value, err := fetch(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		re, ok := api.AsRequestError(err)
		if !ok || !re.IsServerError() || attempt >= maxRetries {
			return nil, lastErr
		}

		delay := c.backoff(attempt)
		c.log.Debugf("query: retrying after %s (attempt %d of %d): %v", delay, attempt+1, maxRetries, err)
		atomic.AddInt64(&c.retries, 1)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// backoff returns the delay before retry number attempt+1: initial backoff
// doubled per attempt, capped, with optional jitter.
func (c *Cache) backoff(attempt int) time.Duration {
	d := float64(c.cfg.InitialBackoff) * math.Pow(c.cfg.BackoffMultiplier, float64(attempt))
	if d > float64(c.cfg.MaxBackoff) {
		d = float64(c.cfg.MaxBackoff)
	}
	if c.cfg.Jitter > 0 {
		d += d * c.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// GetTyped is a typed convenience wrapper over Cache.Get.
func GetTyped[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	value, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("query: cached value for %q is %T, want %T", key, value, zero)
	}
	return typed, nil
}
