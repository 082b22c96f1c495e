package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FetchCache remembers recently fetched page URLs so repeated runs can
// skip them, and tracks per-URL retry counts across runs.
type FetchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFetchCache(addr string, ttl time.Duration) *FetchCache {
	return &FetchCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *FetchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *FetchCache) Close() error {
	return c.client.Close()
}

// MarkFetched records that url was fetched; the mark expires after the
// configured TTL.
func (c *FetchCache) MarkFetched(ctx context.Context, url string) error {
	return c.client.Set(ctx, fetchedKey(url), "1", c.ttl).Err()
}

// IsRecentlyFetched reports whether url was fetched within the TTL.
func (c *FetchCache) IsRecentlyFetched(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, fetchedKey(url)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrRetry bumps the retry counter for url and returns the new count.
// Counters expire after a day so stale URLs do not accumulate.
func (c *FetchCache) IncrRetry(ctx context.Context, url string) (int64, error) {
	key := fmt.Sprintf("retry:%s", url)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	c.client.Expire(ctx, key, 24*time.Hour)
	return count, nil
}

func fetchedKey(url string) string {
	return fmt.Sprintf("fetched:%s", url)
}
