// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebin/internal/ratelimit/store"
)

// Harness is a fresh store plus a way to move its notion of time forward.
type Harness struct {
	Store   store.Store
	Advance func(time.Duration)
	Now     func() time.Time
}

// Run exercises the contract against stores produced by factory.
func Run(t *testing.T, factory func(t *testing.T) Harness) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		h := factory(t)
		_, err := h.Store.Get(ctx, "nope")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("set expires after ttl", func(t *testing.T) {
		h := factory(t)
		require.NoError(t, h.Store.Set(ctx, "ban:ip:1", `{"type":"RAPID_FIRE"}`, 2*time.Second))

		v, err := h.Store.Get(ctx, "ban:ip:1")
		require.NoError(t, err)
		assert.Equal(t, `{"type":"RAPID_FIRE"}`, v)

		h.Advance(3 * time.Second)
		_, err = h.Store.Get(ctx, "ban:ip:1")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("incr and expire", func(t *testing.T) {
		h := factory(t)
		for want := int64(1); want <= 3; want++ {
			got, err := h.Store.Incr(ctx, "abuse:RAPID_FIRE:ip:1")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		require.NoError(t, h.Store.Expire(ctx, "abuse:RAPID_FIRE:ip:1", 5*time.Second))

		h.Advance(6 * time.Second)
		got, err := h.Store.Incr(ctx, "abuse:RAPID_FIRE:ip:1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, got)
	})

	t.Run("del counts existing keys", func(t *testing.T) {
		h := factory(t)
		require.NoError(t, h.Store.Set(ctx, "a", "1", 0))
		require.NoError(t, h.Store.Set(ctx, "b", "2", 0))

		n, err := h.Store.Del(ctx, "a", "b", "c")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("keys and mget", func(t *testing.T) {
		h := factory(t)
		require.NoError(t, h.Store.Set(ctx, "ratelimit:events:100:a", "A", time.Minute))
		require.NoError(t, h.Store.Set(ctx, "ratelimit:events:200:b", "B", time.Minute))
		require.NoError(t, h.Store.Set(ctx, "ban:user:1", "X", time.Minute))

		keys, err := h.Store.Keys(ctx, "ratelimit:events:*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ratelimit:events:100:a", "ratelimit:events:200:b"}, keys)

		values, err := h.Store.MGet(ctx, "ratelimit:events:100:a", "missing", "ratelimit:events:200:b")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "", "B"}, values)
	})

	t.Run("hash counters", func(t *testing.T) {
		h := factory(t)
		_, err := h.Store.HIncrBy(ctx, "ratelimit:metrics:daily:2026-01-01", "total_requests", 2)
		require.NoError(t, err)
		n, err := h.Store.HIncrBy(ctx, "ratelimit:metrics:daily:2026-01-01", "total_requests", 3)
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)

		all, err := h.Store.HGetAll(ctx, "ratelimit:metrics:daily:2026-01-01")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"total_requests": "5"}, all)

		empty, err := h.Store.HGetAll(ctx, "ratelimit:metrics:daily:1999-01-01")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("sliding window admits limit then denies", func(t *testing.T) {
		h := factory(t)
		start := h.Now()
		for i := 1; i <= 3; i++ {
			res, err := h.Store.SlidingWindow(ctx, "ratelimit:burst:anon:ip:1:BURST", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d", i)
			assert.Equal(t, i, res.Count)
			h.Advance(time.Second)
		}

		res, err := h.Store.SlidingWindow(ctx, "ratelimit:burst:anon:ip:1:BURST", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 3, res.Count)
		assert.False(t, res.Reset.Before(h.Now()), "reset lies in the future")
		assert.WithinDuration(t, start.Add(time.Minute), res.Reset, time.Second)
	})

	t.Run("sliding window slides", func(t *testing.T) {
		h := factory(t)
		key := "ratelimit:url_check:anon:ip:2:URL_CHECK"
		for range 2 {
			res, err := h.Store.SlidingWindow(ctx, key, 2, 10*time.Second)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		}
		res, err := h.Store.SlidingWindow(ctx, key, 2, 10*time.Second)
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		h.Advance(11 * time.Second)
		res, err = h.Store.SlidingWindow(ctx, key, 2, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Count)
	})
}
