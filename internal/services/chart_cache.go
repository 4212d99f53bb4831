package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChartCache stores rendered chart payloads per user. Keys embed a
// per-user version counter, so Invalidate is one INCR and stale entries
// age out through their TTL.
type ChartCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewChartCache(redisClient *redis.Client, ttl time.Duration) *ChartCache {
	return &ChartCache{redis: redisClient, ttl: ttl}
}

func chartVersionKey(userID uuid.UUID) string {
	return fmt.Sprintf("charts_version:%s", userID.String())
}

func (c *ChartCache) key(ctx context.Context, userID uuid.UUID, chart string) (string, error) {
	version, err := c.redis.Get(ctx, chartVersionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("charts:%s:v%d:%s", userID.String(), version, chart), nil
}

// Load decodes a cached chart into dst and reports whether it was found.
func (c *ChartCache) Load(ctx context.Context, userID uuid.UUID, chart string, dst interface{}) (bool, error) {
	key, err := c.key(ctx, userID, chart)
	if err != nil {
		return false, err
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached chart %s: %w", chart, err)
	}
	return true, nil
}

func (c *ChartCache) Store(ctx context.Context, userID uuid.UUID, chart string, value interface{}) error {
	key, err := c.key(ctx, userID, chart)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode chart %s: %w", chart, err)
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *ChartCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.redis.Incr(ctx, chartVersionKey(userID)).Err()
}

// cached serves chart from cache when possible and stores freshly computed
// results. Cache failures are logged and fall through to compute.
func cached[T any](ctx context.Context, cache *ChartCache, userID uuid.UUID, chart string, compute func() (*T, error)) (*T, error) {
	if cache == nil {
		return compute()
	}

	var hit T
	found, err := cache.Load(ctx, userID, chart, &hit)
	if err != nil {
		log.Printf("Chart cache read failed for %s: %v", chart, err)
	}
	if found {
		return &hit, nil
	}

	result, err := compute()
	if err != nil {
		return nil, err
	}
	if err := cache.Store(ctx, userID, chart, result); err != nil {
		log.Printf("Chart cache write failed for %s: %v", chart, err)
	}
	return result, nil
}
