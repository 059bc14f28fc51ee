package orbit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/satdash/internal/metrics"
)

const (
	// DefaultCacheTTL is how long a computed position is served unchanged.
	DefaultCacheTTL = 500 * time.Millisecond

	// purgeThreshold is the entry count above which stale entries are purged.
	purgeThreshold = 100
)

// ComputeFunc computes a position; Calculate is the default.
type ComputeFunc func(t time.Time, s Satellite) Position

type cacheEntry struct {
	position Position
	storedAt time.Time
}

// PositionCache memoizes Calculate results in time buckets of one TTL.
// It is owned by whichever component runs the simulation loop and is safe
// for concurrent use.
type PositionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	ttl     time.Duration
	now     func() time.Time
	compute ComputeFunc

	hits   atomic.Int64
	misses atomic.Int64
	purged atomic.Int64
}

// CacheOption configures a PositionCache.
type CacheOption func(*PositionCache)

// WithClock overrides the wall clock used to age entries.
func WithClock(now func() time.Time) CacheOption {
	return func(c *PositionCache) { c.now = now }
}

// WithCompute overrides the function used on a miss.
func WithCompute(fn ComputeFunc) CacheOption {
	return func(c *PositionCache) { c.compute = fn }
}

// NewPositionCache creates a cache with the given TTL (DefaultCacheTTL if <= 0).
func NewPositionCache(ttl time.Duration, opts ...CacheOption) *PositionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &PositionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		compute: Calculate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key from every input of the position function, with
// t reduced to its TTL bucket.
func (c *PositionCache) Key(t time.Time, s Satellite) string {
	fixed := "-"
	if s.FixedLongitude != nil {
		fixed = fmt.Sprintf("%g", *s.FixedLongitude)
	}
	bucket := t.UnixNano() / int64(c.ttl)
	return fmt.Sprintf("%s|%g|%g|%g|%g|%t|%s|%d",
		s.ID, s.OrbitOffset, s.AltitudeKm, s.InclinationDeg, s.PeriodMin, s.Geostationary, fixed, bucket)
}

// Position returns the cached position for (t, s) when it was written less
// than one TTL ago, and computes and stores it otherwise.
func (c *PositionCache) Position(t time.Time, s Satellite) Position {
	key := c.Key(t, s)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Sub(e.storedAt) < c.ttl {
		c.mu.Unlock()
		c.hits.Add(1)
		metrics.IncCacheHits()
		return e.position
	}
	c.mu.Unlock()

	c.misses.Add(1)
	metrics.IncCacheMisses()
	pos := c.compute(t, s)

	c.mu.Lock()
	c.entries[key] = cacheEntry{position: pos, storedAt: now}
	removed := 0
	if len(c.entries) > purgeThreshold {
		removed = c.purgeLocked(now)
	}
	size := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.purged.Add(int64(removed))
		metrics.AddCachePurged(removed)
	}
	metrics.SetCacheEntries(size)

	return pos
}

// purgeLocked drops entries older than twice the TTL. Caller holds mu.
func (c *PositionCache) purgeLocked(now time.Time) int {
	cutoff := 2 * c.ttl
	var removed int
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > cutoff {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// CacheStats holds position cache counters.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Purged  int64 `json:"purged"`
}

// Stats returns current cache counters.
func (c *PositionCache) Stats() CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()

	return CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Purged:  c.purged.Load(),
	}
}
