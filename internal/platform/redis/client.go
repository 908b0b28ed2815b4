// Package redis builds the go-redis client used by the simulator's session
// store and exposes its connection-pool health.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	redisPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_redis_pool_total_conns",
		Help: "Connections currently held by the pool",
	})
	redisPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_redis_pool_idle_conns",
		Help: "Idle connections currently held by the pool",
	})
	redisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_redis_pool_hits_total",
		Help: "Checkouts served from an existing pooled connection",
	})
	redisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_redis_pool_misses_total",
		Help: "Checkouts that had to dial a new connection",
	})
	redisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_redis_pool_timeouts_total",
		Help: "Checkouts that timed out waiting for a connection",
	})
	redisPoolStaleConns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_redis_pool_stale_conns_total",
		Help: "Stale connections dropped from the pool",
	})
)

// Client wraps *redis.Client with a readiness probe and pool-stat export.
type Client struct {
	*redis.Client
	lastStats *redis.PoolStats
}

// New dials Redis from a URL. An empty URL means Redis is not configured
// and returns (nil, nil); callers fall back to the in-memory store.
func New(url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail startup on an unreachable Redis rather than at first request.
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health satisfies the readiness-check signature.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats exports the current pool statistics. go-redis reports
// cumulative totals, so counter families advance by the delta from the
// previous snapshot. Call from a background ticker.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()

	redisPoolTotalConns.Set(float64(stats.TotalConns))
	redisPoolIdleConns.Set(float64(stats.IdleConns))

	var prev redis.PoolStats
	if c.lastStats != nil {
		prev = *c.lastStats
	}
	addDelta(redisPoolHits, stats.Hits, prev.Hits)
	addDelta(redisPoolMisses, stats.Misses, prev.Misses)
	addDelta(redisPoolTimeouts, stats.Timeouts, prev.Timeouts)
	addDelta(redisPoolStaleConns, stats.StaleConns, prev.StaleConns)

	c.lastStats = stats
}

func addDelta(counter prometheus.Counter, current, previous uint32) {
	if current > previous {
		counter.Add(float64(current - previous))
	}
}
