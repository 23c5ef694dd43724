package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// DefaultMaxEntries is the soft cap on cached predictions; when exceeded,
// the oldest half are evicted.
const DefaultMaxEntries = 100

type entry struct {
	result   *core.PredictionResult
	storedAt time.Time
}

// MemoryCache is an in-memory implementation of core.PredictionCache with
// a TTL and a soft size cap. When the cap is exceeded the oldest half of
// the entries (by store time) are evicted in one sweep.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[core.CacheKey]*entry
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger
	now        func() time.Time
}

// NewMemoryCache creates a prediction cache with the given TTL and cap.
func NewMemoryCache(logger *zap.Logger, ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[core.CacheKey]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns a cached prediction if present and younger than the TTL.
func (c *MemoryCache) Get(key core.CacheKey) (*core.PredictionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a prediction, evicting the oldest half of the cache when the
// soft cap is exceeded.
func (c *MemoryCache) Set(key core.CacheKey, result *core.PredictionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{result: result, storedAt: c.now()}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type aged struct {
		key      core.CacheKey
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	evict := c.maxEntries / 2
	if evict > len(all) {
		evict = len(all)
	}
	for _, a := range all[:evict] {
		delete(c.entries, a.key)
	}
	c.logger.Debug("Evicted old prediction cache entries",
		zap.Int("evicted", evict), zap.Int("remaining", len(c.entries)))
}

// Delete removes a cached prediction.
func (c *MemoryCache) Delete(key core.CacheKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been overwritten.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes entries older than the TTL.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired prediction cache entries", zap.Int("expired_count", removed))
	}
}
