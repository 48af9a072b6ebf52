package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebin/internal/ratelimit/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T) storetest.Harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	return storetest.Harness{
		Store:   New(WithClock(clock.Now)),
		Advance: clock.Advance,
		Now:     clock.Now,
	}
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, newHarness)
}

func TestTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 90*time.Second))
	ttl, ok := s.TTL("k")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, ttl)

	_, ok = s.TTL("missing")
	assert.False(t, ok)
}

func TestWrongType(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "not-a-number", 0))
	_, err := s.Incr(ctx, "k")
	assert.Error(t, err)

	_, err = s.HIncrBy(ctx, "k", "f", 1)
	assert.Error(t, err)
}

// Concurrent admissions against one key must never exceed the limit.
func TestSlidingWindowConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.SlidingWindow(ctx, "hot", 10, time.Minute)
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
