// Package cache is a Redis cache-aside layer. A Cache built without a
// reachable Redis is a no-op, so callers never branch on availability.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"openstream/logging"
	"openstream/metrics"
)

// DurationTTL bounds how long a YouTube duration stays cached.
const DurationTTL = 24 * time.Hour

type Cache struct {
	rdb *redis.Client
}

// New connects to redisURL. An empty URL, a bad URL or a failed ping all
// yield a disabled cache.
func New(ctx context.Context, redisURL string) *Cache {
	if redisURL == "" {
		logging.Info().Msg("redis: no URL configured, caching disabled")
		return &Cache{}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logging.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &Cache{}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		rdb.Close()
		return &Cache{}
	}
	logging.Info().Msg("redis: connected, caching enabled")
	return &Cache{rdb: rdb}
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

func durationKey(youtubeID string) string { return "yt:duration:" + youtubeID }

// GetDuration returns the cached ISO-8601 duration for a YouTube id.
func (c *Cache) GetDuration(ctx context.Context, youtubeID string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	v, err := c.rdb.Get(ctx, durationKey(youtubeID)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.Inc()
		return "", false
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("youtube_id", youtubeID).Msg("redis: get failed")
		return "", false
	}
	metrics.CacheHits.Inc()
	return v, true
}

// SetDuration caches an ISO-8601 duration. Failures are logged only.
func (c *Cache) SetDuration(ctx context.Context, youtubeID, iso string) {
	if !c.Enabled() || iso == "" {
		return
	}
	if err := c.rdb.Set(ctx, durationKey(youtubeID), iso, DurationTTL).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("youtube_id", youtubeID).Msg("redis: set failed")
	}
}

// Ping reports Redis health; a disabled cache is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
