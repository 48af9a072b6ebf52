package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pastebin/internal/ratelimit/metrics"
	dErrors "pastebin/pkg/domain-errors"
	"pastebin/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the breaker is refusing calls.
var ErrCircuitOpen = dErrors.New(dErrors.CodeUnavailable, "store circuit open")

// Guarded wraps a Store with a circuit breaker. While the breaker is open
// every call fails fast with ErrCircuitOpen, which callers handle like any
// other unavailable-store error. Nothing is retried.
type Guarded struct {
	next    Store
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// GuardOption configures a Guarded store.
type GuardOption func(*Guarded)

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guarded) {
		g.metrics = m
	}
}

// NewGuarded wraps next with breaker.
func NewGuarded(next Store, breaker *circuit.Breaker, opts ...GuardOption) (*Guarded, error) {
	if next == nil {
		return nil, errors.New("store is required")
	}
	if breaker == nil {
		return nil, errors.New("circuit breaker is required")
	}
	g := &Guarded{next: next, breaker: breaker, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// guard runs fn through the breaker. Not-found is a normal answer, not a
// store failure. A call that failed because the caller's context ended says
// nothing about the store and is not counted either way.
func guard[T any](ctx context.Context, g *Guarded, op string, fn func() (T, error)) (T, error) {
	var zero T
	if !g.breaker.Allow() {
		return zero, ErrCircuitOpen
	}
	v, err := fn()
	if err != nil && ctx.Err() != nil {
		g.breaker.Release()
		return v, err
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		g.metrics.IncrementStoreErrors(op)
		if change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "ratelimit_store_circuit_opened",
				"breaker", g.breaker.Name(),
				"operation", op,
				"error", err,
			)
			g.metrics.SetCircuitOpen(true)
		}
		return v, err
	}
	if change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "ratelimit_store_circuit_closed", "breaker", g.breaker.Name())
		g.metrics.SetCircuitOpen(false)
	}
	return v, err
}

type none struct{}

func (g *Guarded) Get(ctx context.Context, key string) (string, error) {
	return guard(ctx, g, "get", func() (string, error) { return g.next.Get(ctx, key) })
}

func (g *Guarded) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := guard(ctx, g, "set", func() (none, error) { return none{}, g.next.Set(ctx, key, value, ttl) })
	return err
}

func (g *Guarded) Incr(ctx context.Context, key string) (int64, error) {
	return guard(ctx, g, "incr", func() (int64, error) { return g.next.Incr(ctx, key) })
}

func (g *Guarded) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := guard(ctx, g, "expire", func() (none, error) { return none{}, g.next.Expire(ctx, key, ttl) })
	return err
}

func (g *Guarded) Del(ctx context.Context, keys ...string) (int64, error) {
	return guard(ctx, g, "del", func() (int64, error) { return g.next.Del(ctx, keys...) })
}

func (g *Guarded) Keys(ctx context.Context, pattern string) ([]string, error) {
	return guard(ctx, g, "keys", func() ([]string, error) { return g.next.Keys(ctx, pattern) })
}

func (g *Guarded) MGet(ctx context.Context, keys ...string) ([]string, error) {
	return guard(ctx, g, "mget", func() ([]string, error) { return g.next.MGet(ctx, keys...) })
}

func (g *Guarded) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	return guard(ctx, g, "hincrby", func() (int64, error) { return g.next.HIncrBy(ctx, key, field, n) })
}

func (g *Guarded) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return guard(ctx, g, "hgetall", func() (map[string]string, error) { return g.next.HGetAll(ctx, key) })
}

func (g *Guarded) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (WindowResult, error) {
	return guard(ctx, g, "sliding_window", func() (WindowResult, error) {
		return g.next.SlidingWindow(ctx, key, limit, window)
	})
}

// Ping bypasses the breaker so health checks always reach the store.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

var _ Store = (*Guarded)(nil)
