package query

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtrader/cardtrader/internal/api"
)

// fakeClock drives staleness without real time passing.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(clock *fakeClock, slept *[]time.Duration) *Cache {
	cfg := Config{}
	if clock != nil {
		cfg.Now = clock.Now
	}
	if slept != nil {
		cfg.Sleep = func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		}
	} else {
		cfg.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	}
	return New(cfg)
}

func TestCache_ServesFreshValueWithoutRefetch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(clock, nil)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return []api.Card{{ID: "c1"}}, nil
	}

	ctx := context.Background()
	_, err := cache.Get(ctx, "/cards", fetch)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = cache.Get(ctx, "/cards", fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), cache.Stats().Hits)
}

func TestCache_RefetchesAfterStaleWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(clock, nil)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	ctx := context.Background()
	first, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	clock.Advance(5*time.Minute + time.Second)
	second, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, second)
	assert.Equal(t, 2, calls)
}

func TestCache_ServerErrorRetriedWithBackoffSchedule(t *testing.T) {
	var slept []time.Duration
	cache := newTestCache(nil, &slept)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return nil, &api.RequestError{Status: 500, Body: "boom"}
	}

	_, err := cache.Get(context.Background(), "k", fetch)
	require.Error(t, err)

	// 3 retries after the initial attempt, delayed 1s, 2s, 4s.
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, slept)
	assert.Equal(t, int64(3), cache.Stats().Retries)
}

func TestCache_ClientErrorNotRetried(t *testing.T) {
	var slept []time.Duration
	cache := newTestCache(nil, &slept)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return nil, &api.RequestError{Status: 404, Body: "not found"}
	}

	_, err := cache.Get(context.Background(), "k", fetch)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestCache_TransportErrorNotRetried(t *testing.T) {
	cache := newTestCache(nil, nil)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return nil, fmt.Errorf("connection reset")
	}

	_, err := cache.Get(context.Background(), "k", fetch)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCache_StaleValueServedWhenRefreshFails(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(clock, nil)

	healthy := true
	fetch := func(ctx context.Context) (any, error) {
		if healthy {
			return "v1", nil
		}
		return nil, &api.RequestError{Status: 503}
	}

	ctx := context.Background()
	_, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)

	healthy = false
	clock.Advance(10 * time.Minute)

	value, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
	assert.Equal(t, int64(1), cache.Stats().StaleHits)
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	cache := newTestCache(nil, nil)

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	ctx := context.Background()
	_, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)

	cache.Invalidate("k")
	value, err := cache.Get(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, value)
}

func TestCache_InvalidateAll(t *testing.T) {
	cache := newTestCache(nil, nil)

	ctx := context.Background()
	for _, key := range []string{"a", "b"} {
		_, err := cache.Get(ctx, key, func(ctx context.Context) (any, error) { return key, nil })
		require.NoError(t, err)
	}

	cache.InvalidateAll()

	calls := 0
	for _, key := range []string{"a", "b"} {
		_, err := cache.Get(ctx, key, func(ctx context.Context) (any, error) {
			calls++
			return key, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestCache_ConcurrentGetsShareOneFetch(t *testing.T) {
	cache := newTestCache(nil, nil)

	var calls int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return "v", nil
	}

	ctx := context.Background()
	const readers = 8
	var wg sync.WaitGroup
	results := make([]any, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := cache.Get(ctx, "k", fetch)
			assert.NoError(t, err)
			results[i] = value
		}(i)
	}

	// Give the readers time to pile onto the same flight before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	for _, r := range results {
		assert.Equal(t, "v", r)
	}
}

func TestCache_MutationRetryBoundSmallerThanReads(t *testing.T) {
	var slept []time.Duration
	cache := newTestCache(nil, &slept)

	calls := 0
	err := cache.Mutate(context.Background(), func(ctx context.Context) error {
		calls++
		return &api.RequestError{Status: 500}
	})
	require.Error(t, err)

	// 2 retries after the initial attempt.
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestCache_MutateInvalidatesOnlyOnSuccess(t *testing.T) {
	cache := newTestCache(nil, nil)
	ctx := context.Background()

	_, err := cache.Get(ctx, "k", func(ctx context.Context) (any, error) { return "v1", nil })
	require.NoError(t, err)

	// Failed mutation leaves the cache untouched.
	err = cache.Mutate(ctx, func(ctx context.Context) error {
		return &api.RequestError{Status: 400}
	}, "k")
	require.Error(t, err)

	value, err := cache.Get(ctx, "k", func(ctx context.Context) (any, error) { return "v2", nil })
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	// Successful mutation invalidates.
	require.NoError(t, cache.Mutate(ctx, func(ctx context.Context) error { return nil }, "k"))

	value, err = cache.Get(ctx, "k", func(ctx context.Context) (any, error) { return "v2", nil })
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}

func TestCache_BackoffCapped(t *testing.T) {
	cache := New(Config{
		InitialBackoff:    time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 2,
		Sleep:             func(ctx context.Context, d time.Duration) error { return nil },
	})

	assert.Equal(t, time.Second, cache.backoff(0))
	assert.Equal(t, 2*time.Second, cache.backoff(1))
	assert.Equal(t, 3*time.Second, cache.backoff(2))
	assert.Equal(t, 3*time.Second, cache.backoff(5))
}

func TestGetTyped(t *testing.T) {
	cache := newTestCache(nil, nil)
	ctx := context.Background()

	cards, err := GetTyped(ctx, cache, "/cards", func(ctx context.Context) ([]api.Card, error) {
		return []api.Card{{ID: "c1"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, cards, 1)

	// Same key read back through the typed wrapper hits the cache.
	cards, err = GetTyped(ctx, cache, "/cards", func(ctx context.Context) ([]api.Card, error) {
		t.Fatal("fetch should not run for a fresh key")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", cards[0].ID)
}
