package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebin/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr() + "/0", PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, 4, client.Options().PoolSize)
}

func TestPoolCollector(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(client.PoolCollector()))

	n, err := testutil.GatherAndCount(reg, "pastebin_redis_pool_hits_total", "pastebin_redis_pool_conns")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "redis://127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	assert.ErrorContains(t, err, "redis ping failed")
}
