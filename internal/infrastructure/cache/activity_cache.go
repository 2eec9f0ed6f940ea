// Package cache provides Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"posledger/internal/core/entity"
	"posledger/pkg/logger"
)

const activityKeyPrefix = "posledger:"

// ActivityCache caches recent activity pages in Redis. Failures are logged
// and treated as cache misses, Redis being down never fails a request.
type ActivityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewActivityCache(client *redis.Client, ttl time.Duration) *ActivityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ActivityCache{client: client, ttl: ttl}
}

func (c *ActivityCache) GetList(ctx context.Context, key string) ([]entity.Activity, bool) {
	data, err := c.client.Get(ctx, activityKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx, "activity cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var items []entity.Activity
	if err := json.Unmarshal(data, &items); err != nil {
		logger.Warn(ctx, "activity cache decode failed", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

func (c *ActivityCache) SetList(ctx context.Context, key string, items []entity.Activity) {
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, activityKeyPrefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "activity cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops all cached activity pages. Called after every new
// activity so readers never see a stale first page longer than one write.
func (c *ActivityCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, activityKeyPrefix+"activities:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn(ctx, "activity cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "activity cache invalidate failed", "error", err)
	}
}
