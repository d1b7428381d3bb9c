package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/pscheid92/screensync/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how stale a fingerprint can be.
const DefaultCacheTTL = 60 * time.Second

type statusSource interface {
	Status(ctx context.Context, screenID string) (domain.ContentStatus, error)
}

// Cache keeps content status per screen for a fixed TTL. Concurrent misses for
// the same screen share one computation. Content mutations are not written
// through; callers that want fresher results call Invalidate.
type Cache struct {
	source  statusSource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.CacheMetrics
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	status    domain.ContentStatus
	expiresAt time.Time
}

// NewCache wraps source. A ttl of zero disables caching. m may be nil.
func NewCache(source statusSource, ttl time.Duration, clock clockwork.Clock, m *metrics.CacheMetrics) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		clock:   clock,
		metrics: m,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *Cache) Status(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	if status, ok := c.get(screenID); ok {
		if c.metrics != nil {
			c.metrics.Hits.Inc()
		}
		return status, nil
	}
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}

	// The flight is shared, so one caller going away must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(screenID, func() (any, error) {
		start := c.clock.Now()
		status, err := c.source.Status(flightCtx, screenID)
		if c.metrics != nil {
			c.metrics.ComputeDuration.Observe(c.clock.Since(start).Seconds())
		}
		if err != nil {
			return domain.ContentStatus{}, err
		}
		c.set(screenID, status)
		return status, nil
	})
	if err != nil {
		return domain.ContentStatus{}, fmt.Errorf("content status for %s: %w", screenID, err)
	}
	return v.(domain.ContentStatus), nil
}

func (c *Cache) get(screenID string) (domain.ContentStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[screenID]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		// Expired entries stay until the eviction timer runs.
		return domain.ContentStatus{}, false
	}
	return entry.status, true
}

func (c *Cache) set(screenID string, status domain.ContentStatus) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[screenID] = &cacheEntry{
		status:    status,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate drops the entry for one screen.
func (c *Cache) Invalidate(screenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, screenID)
	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
}

// InvalidateAll drops every entry. Announcements do not say which screens
// they affect, so this is what the announce path uses.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
}

// Size includes expired entries not yet evicted.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired removes expired entries and returns how many were removed.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// StartEvictionTimer evicts expired entries every interval until the
// returned stop function is called.
func (c *Cache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted expired fingerprint cache entries", "count", evicted, "remaining", c.Size())
					if c.metrics != nil {
						c.metrics.Evictions.Add(float64(evicted))
					}
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
