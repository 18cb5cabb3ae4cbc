package settings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "rescue:settings:"

// CachedProvider fronts another Provider with a Redis read-through cache.
// When Redis is unreachable it reads straight from the underlying provider.
type CachedProvider struct {
	client redis.Cmdable
	next   Provider
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedProvider(client redis.Cmdable, next Provider, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger.With().Str("component", "settings_cache").Logger(),
	}
}

func (c *CachedProvider) GetFloat(ctx context.Context, key string, def float64) (float64, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	switch {
	case err == nil:
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil && ValidPositive(v) {
			return v, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("settings cache unavailable")
		return c.next.GetFloat(ctx, key, def)
	}

	v, err := c.next.GetFloat(ctx, key, def)
	if err != nil {
		return v, err
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, strconv.FormatFloat(v, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("settings cache write failed")
	}
	return v, nil
}

// Invalidate drops the cached value of key.
func (c *CachedProvider) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, cacheKeyPrefix+key).Err()
}
