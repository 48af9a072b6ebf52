// Package store defines the key-value operations the rate limiting
// subsystem needs from its backing store.
//
// Two implementations exist: store/redis for production and store/memory
// for tests and single-process deployments. Every operation is a single-key
// atomic call (or a read across keys for monitoring); nothing relies on
// multi-key transactions.
package store

import (
	"context"
	"time"

	dErrors "pastebin/pkg/domain-errors"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "key not found")

// WindowResult is the outcome of one sliding window admission.
type WindowResult struct {
	Allowed bool
	// Count is the number of requests in the window after this call.
	Count int
	// Reset is when the oldest request in the window falls out of it.
	Reset time.Time
}

// Store is the full contract. Consumers declare the narrower interface they
// actually use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// Keys lists keys matching a glob pattern. Monitoring and cleanup only.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// MGet returns values in key order; missing keys yield "".
	MGet(ctx context.Context, keys ...string) ([]string, error)
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// SlidingWindow admits one request against limit within window.
	SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (WindowResult, error)
	Ping(ctx context.Context) error
}

// TTLSeconds rounds a duration up to whole seconds, the granularity of
// EXPIRE. Anything positive maps to at least one second.
func TTLSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
