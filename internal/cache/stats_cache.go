// Package cache wraps Redis as a short-TTL front for the health view's
// stats() projection (addition M), grounded on the teacher's
// pkg/redisclient.Client wrapper.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"video-worker/internal/gateway"
)

const statsCacheKey = "video_worker:stats"

// StatsCache is an optional read-through cache in front of
// gateway.Storage.Stats. When redisURL is empty callers should skip
// constructing one and call the gateway directly — the health view's
// correctness never depends on the cache being present.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(redisURL string, ttl time.Duration) (*StatsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &StatsCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Get returns a cached stats snapshot, or (zero, false) on a miss. Redis
// errors are treated as a miss rather than propagated: the cache is purely
// an optimization and a flaky Redis must never take down the health view.
func (c *StatsCache) Get(ctx context.Context) (gateway.Stats, bool) {
	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return gateway.Stats{}, false
	}
	var stats gateway.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return gateway.Stats{}, false
	}
	return stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats gateway.Stats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	c.client.Set(ctx, statsCacheKey, raw, c.ttl)
}

func (c *StatsCache) Close() error {
	return c.client.Close()
}
