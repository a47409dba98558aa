// Package cache implements the pattern cache on Redis.
package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"responder_server/core/domain"
	"responder_server/core/port/out"
)

const patternKeyPrefix = "responder:patterns:"

// PatternCache stores mined response patterns as JSON with a TTL. A cache
// miss returns (nil, nil); the caller recomputes.
type PatternCache struct {
	client *redis.Client
}

func NewPatternCache(client *redis.Client) *PatternCache {
	return &PatternCache{client: client}
}

func (c *PatternCache) Get(ctx context.Context, account string) (*domain.ResponsePattern, error) {
	data, err := c.client.Get(ctx, patternKeyPrefix+account).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pattern domain.ResponsePattern
	if err := json.Unmarshal([]byte(data), &pattern); err != nil {
		return nil, err
	}
	return &pattern, nil
}

func (c *PatternCache) Set(ctx context.Context, account string, pattern *domain.ResponsePattern, ttl time.Duration) error {
	data, err := json.Marshal(pattern)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, patternKeyPrefix+account, data, ttl).Err()
}

var _ out.PatternCache = (*PatternCache)(nil)
