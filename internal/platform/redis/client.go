// Package redis opens the shared go-redis client and exports its pool
// statistics to Prometheus.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"pastebin/internal/platform/config"
)

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
}

// New connects and pings. It returns nil, nil when no URL is configured so
// callers can fall back to an in-process store.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// applyPool overrides URL defaults with explicitly configured values.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

// Health pings the server; it backs the readiness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// PoolCollector returns a collector that reads pool statistics at scrape
// time. Register it once per client.
func (c *Client) PoolCollector() prometheus.Collector {
	return &poolCollector{stats: c.PoolStats}
}

var (
	poolHitsDesc = prometheus.NewDesc("pastebin_redis_pool_hits_total",
		"Times a free connection was found in the pool.", nil, nil)
	poolMissesDesc = prometheus.NewDesc("pastebin_redis_pool_misses_total",
		"Times a free connection was not found in the pool.", nil, nil)
	poolTimeoutsDesc = prometheus.NewDesc("pastebin_redis_pool_timeouts_total",
		"Times a wait for a connection timed out.", nil, nil)
	poolTotalDesc = prometheus.NewDesc("pastebin_redis_pool_conns",
		"Connections currently held by the pool.", nil, nil)
	poolIdleDesc = prometheus.NewDesc("pastebin_redis_pool_idle_conns",
		"Idle connections in the pool.", nil, nil)
	poolStaleDesc = prometheus.NewDesc("pastebin_redis_pool_stale_conns_total",
		"Stale connections removed from the pool.", nil, nil)
)

type poolCollector struct {
	stats func() *redis.PoolStats
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolHitsDesc
	ch <- poolMissesDesc
	ch <- poolTimeoutsDesc
	ch <- poolTotalDesc
	ch <- poolIdleDesc
	ch <- poolStaleDesc
}

func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.stats()
	ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(poolTimeoutsDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(poolStaleDesc, prometheus.CounterValue, float64(s.StaleConns))
}
