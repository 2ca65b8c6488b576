package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LazyCache is the shared cache tier. Redis expires entries on its own, so a value is never
// served past its ttl.
type LazyCache struct {
	cli *redis.Client
}

func NewLazyCache(cli *redis.Client) *LazyCache {
	return &LazyCache{cli: cli}
}

func (c *LazyCache) Fetch(ctx context.Context, key string) (string, bool, error) {
	out := c.cli.Get(ctx, getCacheKey(key))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return "", false, nil
		}
		return "", false, out.Err()
	}
	return out.Val(), true, nil
}

func (c *LazyCache) Save(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.cli.Set(ctx, getCacheKey(key), value, ttl).Err()
}

func (c *LazyCache) Delete(ctx context.Context, key string) error {
	return c.cli.Del(ctx, getCacheKey(key)).Err()
}
