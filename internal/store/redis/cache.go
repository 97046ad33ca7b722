package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is the default TTL for cached lookups (24 hours)
const DefaultCacheTTL = 24 * time.Hour

// Cache stores the results of slow remote lookups, such as WKT to EPSG
// resolution, under a namespace.
type Cache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewCache returns a cache bound to namespace. A zero ttl uses DefaultCacheTTL.
func (s *Store) NewCache(namespace string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: s.client, namespace: namespace, ttl: ttl}
}

// Put stores a lookup result
func (c *Cache) Put(ctx context.Context, input, value string) error {
	if err := c.client.Set(ctx, CacheKey(c.namespace, input), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache lookup: %w", err)
	}
	return nil
}

// Get retrieves a cached result. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, input string) (value string, ok bool, err error) {
	value, err = c.client.Get(ctx, CacheKey(c.namespace, input)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil // Cache miss
		}
		return "", false, fmt.Errorf("failed to get cached lookup: %w", err)
	}
	return value, true, nil
}

// Flush removes every entry of the namespace
func (c *Cache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefixCache+c.namespace+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
