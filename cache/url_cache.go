package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// URLCache stores signed URLs so hot objects are not re-signed on every
// request. A miss returns ok=false with a nil error.
type URLCache interface {
	Get(ctx context.Context, objectKey string, ttl time.Duration) (url string, ok bool, err error)
	Set(ctx context.Context, objectKey string, ttl time.Duration, url string) error
}

// RedisURLCache is a URLCache backed by Redis.
type RedisURLCache struct {
	client *redis.Client
}

func NewRedisURLCache(client *redis.Client) *RedisURLCache {
	return &RedisURLCache{client: client}
}

// URLCacheKey includes the TTL so URLs signed for different lifetimes never
// answer for each other.
func URLCacheKey(objectKey string, ttl time.Duration) string {
	return fmt.Sprintf("url:%s:%d", objectKey, int64(ttl/time.Second))
}

// CacheLifetime is how long a signed URL may be reused: a quarter of its
// validity, so every URL handed out still has at least three quarters left.
// Lifetimes under a second are not worth a round trip and return zero.
func CacheLifetime(ttl time.Duration) time.Duration {
	lifetime := ttl / 4
	if lifetime < time.Second {
		return 0
	}
	return lifetime
}

func (c *RedisURLCache) Get(ctx context.Context, objectKey string, ttl time.Duration) (string, bool, error) {
	val, err := c.client.Get(ctx, URLCacheKey(objectKey, ttl)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached URL: %w", err)
	}
	return val, true, nil
}

func (c *RedisURLCache) Set(ctx context.Context, objectKey string, ttl time.Duration, url string) error {
	lifetime := CacheLifetime(ttl)
	if lifetime <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, URLCacheKey(objectKey, ttl), url, lifetime).Err(); err != nil {
		return fmt.Errorf("failed to cache URL: %w", err)
	}
	return nil
}
