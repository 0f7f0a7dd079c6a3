package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"driftline/internal/errs"
	"driftline/internal/ports"
)

const redisKeyPrefix = "driftline:"

// RedisCache is the shared-cache alternative to SQLiteCache for multi-node
// deployments.
type RedisCache struct {
	client *redis.Client
}

var _ ports.Cache = (*RedisCache)(nil)

// NewRedisCache connects and pings so a misconfigured address fails at
// bootstrap, not on first use.
func NewRedisCache(addr string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errs.Wrap(err, "connect to redis")
	}

	return &RedisCache{client: client}, nil
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := requireKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	value, err := c.client.Get(ctx, redisKeyPrefix+trimmedKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := requireKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, redisKeyPrefix+trimmedKey, value, ttl).Err(); err != nil {
		return errs.Wrap(err, "redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := requireKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.client.Del(ctx, redisKeyPrefix+trimmedKey).Err(); err != nil {
		return errs.Wrap(err, "redis delete")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
