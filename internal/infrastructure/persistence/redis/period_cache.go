package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE PERIOD CACHE
// ══════════════════════════════════════════════════════════════════════════════

const (
	activePeriodKey = "period:active"

	// noneSentinel marks a cached "no active period", so absence gets the
	// same TTL protection as presence.
	noneSentinel = "none"

	// DefaultTTL keeps reads cheap while bounding staleness between the
	// write-side invalidation and any racing reader.
	DefaultTTL = 60 * time.Second
)

// PeriodCache implements period.Cache on Redis.
type PeriodCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodCache creates the cache. A non-positive ttl falls back to
// DefaultTTL.
func NewPeriodCache(client *redis.Client, ttl time.Duration) *PeriodCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PeriodCache{client: client, ttl: ttl}
}

// Get implements period.Cache. A corrupt payload is treated as a miss.
func (c *PeriodCache) Get(ctx context.Context) (*period.AcademicPeriod, bool, error) {
	raw, err := c.client.Get(ctx, activePeriodKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	if raw == noneSentinel {
		return nil, true, nil
	}

	var p period.AcademicPeriod
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, nil
	}
	return &p, true, nil
}

// Set implements period.Cache.
func (c *PeriodCache) Set(ctx context.Context, p *period.AcademicPeriod) error {
	payload := noneSentinel
	if p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal period: %w", err)
		}
		payload = string(data)
	}

	if err := c.client.Set(ctx, activePeriodKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate implements period.Cache.
func (c *PeriodCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, activePeriodKey).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
