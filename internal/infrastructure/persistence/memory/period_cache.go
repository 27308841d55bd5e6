// Package memory provides in-process fallbacks for the cache ports, used
// when Redis is disabled in configuration and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/period"
	"github.com/thesis-hub/thesis-scheduling-hub/pkg/timeutil"
)

// PeriodCache is an in-process period.Cache with the same TTL semantics as
// the Redis implementation, including negative caching.
type PeriodCache struct {
	mu        sync.RWMutex
	value     *period.AcademicPeriod
	populated bool
	expiresAt time.Time
	ttl       time.Duration
	clock     timeutil.Clock
}

// NewPeriodCache creates the cache. A non-positive ttl falls back to one
// minute.
func NewPeriodCache(ttl time.Duration, clock timeutil.Clock) *PeriodCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &PeriodCache{ttl: ttl, clock: clock}
}

// Get implements period.Cache.
func (c *PeriodCache) Get(_ context.Context) (*period.AcademicPeriod, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.populated || c.clock.Now().After(c.expiresAt) {
		return nil, false, nil
	}
	return c.value, true, nil
}

// Set implements period.Cache.
func (c *PeriodCache) Set(_ context.Context, p *period.AcademicPeriod) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = p
	c.populated = true
	c.expiresAt = c.clock.Now().Add(c.ttl)
	return nil
}

// Invalidate implements period.Cache.
func (c *PeriodCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = nil
	c.populated = false
	return nil
}
