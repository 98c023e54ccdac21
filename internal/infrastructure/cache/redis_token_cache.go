package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenCache implements TokenCache on Redis so several instances share one token
type RedisTokenCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTokenCache creates a cache over an existing client
func NewRedisTokenCache(client redis.UniversalClient, keyPrefix string) *RedisTokenCache {
	return &RedisTokenCache{client: client, keyPrefix: keyPrefix}
}

// Get implements TokenCache
func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements TokenCache. A non-positive ttl deletes the key.
func (c *RedisTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, key)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete implements TokenCache
func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}

var _ TokenCache = (*RedisTokenCache)(nil)
