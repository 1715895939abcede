package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	rdb redis.UniversalClient
}

// NewRedis returns a PageCache backed by rdb.
func NewRedis(rdb redis.UniversalClient) PageCache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, path, scope string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, pageKey(path, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

func (c *redisCache) Set(ctx context.Context, path, scope string, body []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, pageKey(path, scope), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, path string) error {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pagePrefix(path)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
