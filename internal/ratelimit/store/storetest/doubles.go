package storetest

import (
	"context"
	"sync/atomic"
	"time"

	"pastebin/internal/ratelimit/store"
	dErrors "pastebin/pkg/domain-errors"
)

// ErrUnreachable is what Failing returns from every call.
var ErrUnreachable = dErrors.New(dErrors.CodeUnavailable, "store unreachable")

// Failing is a store.Store whose every operation fails, standing in for an
// unreachable Redis.
type Failing struct{}

func (Failing) Get(context.Context, string) (string, error) {
	return "", ErrUnreachable
}

func (Failing) Set(context.Context, string, string, time.Duration) error {
	return ErrUnreachable
}

func (Failing) Incr(context.Context, string) (int64, error) {
	return 0, ErrUnreachable
}

func (Failing) Expire(context.Context, string, time.Duration) error {
	return ErrUnreachable
}

func (Failing) Del(context.Context, ...string) (int64, error) {
	return 0, ErrUnreachable
}

func (Failing) Keys(context.Context, string) ([]string, error) {
	return nil, ErrUnreachable
}

func (Failing) MGet(context.Context, ...string) ([]string, error) {
	return nil, ErrUnreachable
}

func (Failing) HIncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, ErrUnreachable
}

func (Failing) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, ErrUnreachable
}

func (Failing) SlidingWindow(context.Context, string, int, time.Duration) (store.WindowResult, error) {
	return store.WindowResult{}, ErrUnreachable
}

func (Failing) Ping(context.Context) error {
	return ErrUnreachable
}

// Counting wraps a store and counts every call that reaches it.
type Counting struct {
	store.Store
	calls atomic.Int64
}

// NewCounting wraps next.
func NewCounting(next store.Store) *Counting {
	return &Counting{Store: next}
}

// Calls returns the number of operations performed so far.
func (c *Counting) Calls() int64 {
	return c.calls.Load()
}

func (c *Counting) Get(ctx context.Context, key string) (string, error) {
	c.calls.Add(1)
	return c.Store.Get(ctx, key)
}

func (c *Counting) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Store.Set(ctx, key, value, ttl)
}

func (c *Counting) Incr(ctx context.Context, key string) (int64, error) {
	c.calls.Add(1)
	return c.Store.Incr(ctx, key)
}

func (c *Counting) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Store.Expire(ctx, key, ttl)
}

func (c *Counting) Del(ctx context.Context, keys ...string) (int64, error) {
	c.calls.Add(1)
	return c.Store.Del(ctx, keys...)
}

func (c *Counting) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.calls.Add(1)
	return c.Store.Keys(ctx, pattern)
}

func (c *Counting) MGet(ctx context.Context, keys ...string) ([]string, error) {
	c.calls.Add(1)
	return c.Store.MGet(ctx, keys...)
}

func (c *Counting) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	c.calls.Add(1)
	return c.Store.HIncrBy(ctx, key, field, n)
}

func (c *Counting) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.calls.Add(1)
	return c.Store.HGetAll(ctx, key)
}

func (c *Counting) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (store.WindowResult, error) {
	c.calls.Add(1)
	return c.Store.SlidingWindow(ctx, key, limit, window)
}

var (
	_ store.Store = Failing{}
	_ store.Store = (*Counting)(nil)
)
