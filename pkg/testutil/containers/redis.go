//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
}

// NewRedisContainer starts a Redis container and terminates it when the
// test finishes.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	return &RedisContainer{Container: container, URL: url}
}

// NewClient returns a client connected to the container. Callers close it.
func (r *RedisContainer) NewClient(t *testing.T) *goredis.Client {
	t.Helper()
	opts, err := goredis.ParseURL(r.URL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	return goredis.NewClient(opts)
}

// Flush removes every key so suites sharing the container start clean.
func (r *RedisContainer) Flush(ctx context.Context, t *testing.T) {
	t.Helper()
	client := r.NewClient(t)
	defer client.Close()
	if err := client.FlushAll(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}
