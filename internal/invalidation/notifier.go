// Package invalidation signals that cached views of a tenant's records are
// stale, and serves the Redis-backed list cache those signals clear.
package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Key layout: cache:<resourceTag>:<tenantID>:<fingerprint>. Invalidation
// always clears a whole tenant/resource prefix; it never reaches into
// another tenant's keys.
func cachePrefix(resourceTag, tenantID string) string {
	return fmt.Sprintf("cache:%s:%s:", resourceTag, tenantID)
}

// WarmupEnqueuer schedules a background rebuild of a tenant's cached lists.
type WarmupEnqueuer interface {
	EnqueueWarmup(ctx context.Context, tenantID, resourceTag string) error
}

// RedisNotifier drops a tenant's cached list views after a mutation and,
// when an enqueuer is configured, schedules a warmup to rebuild them.
type RedisNotifier struct {
	client   *redis.Client
	enqueuer WarmupEnqueuer
	logger   *slog.Logger
}

// NewRedisNotifier constructs a RedisNotifier. enqueuer may be nil.
func NewRedisNotifier(client *redis.Client, enqueuer WarmupEnqueuer, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, enqueuer: enqueuer, logger: logger}
}

// Invalidate removes every cached list view for (tenantID, resourceTag).
func (n *RedisNotifier) Invalidate(ctx context.Context, tenantID, resourceTag string) error {
	if tenantID == "" || resourceTag == "" {
		return fmt.Errorf("invalidation: tenant and resource tag required")
	}

	pattern := cachePrefix(resourceTag, tenantID) + "*"
	iter := n.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("invalidation: scan: %w", err)
	}
	if len(keys) > 0 {
		if err := n.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("invalidation: del: %w", err)
		}
	}

	if n.enqueuer != nil {
		if err := n.enqueuer.EnqueueWarmup(ctx, tenantID, resourceTag); err != nil && n.logger != nil {
			n.logger.Warn("enqueue warmup", slog.String("tenant", tenantID), slog.Any("error", err))
		}
	}
	return nil
}

// ListCache stores serialized list results in Redis with a short TTL.
// Concurrent rebuilds of the same key collapse into one via singleflight.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewListCache constructs a ListCache.
func NewListCache(client *redis.Client, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListCache{client: client, ttl: ttl}
}

// GetOrBuild returns the cached payload for the key, building and storing it
// on a miss. Cache failures degrade to building directly: a broken Redis
// never blocks a listing.
func (c *ListCache) GetOrBuild(ctx context.Context, tenantID, resourceTag, fingerprint string, build func(context.Context) ([]byte, error)) ([]byte, error) {
	key := cachePrefix(resourceTag, tenantID) + fingerprint

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return data, nil
	}

	result, buildErr, _ := c.singleflightBuild(ctx, key, build)
	if buildErr != nil {
		return nil, buildErr
	}
	if setErr := c.client.Set(ctx, key, result, c.ttl).Err(); setErr != nil {
		// Serve the fresh result anyway; the next request rebuilds.
		return result, nil
	}
	return result, nil
}

func (c *ListCache) singleflightBuild(ctx context.Context, key string, build func(context.Context) ([]byte, error)) ([]byte, error, bool) {
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		return build(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		data, _ := res.Val.([]byte)
		return data, res.Err, res.Shared
	}
}
