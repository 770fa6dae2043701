// Package cache is the in-process TTL cache in front of the rate store and
// the external provider. Entries are partitioned by key type, each type
// with its own TTL; at capacity the entry with the oldest last access is
// evicted. GetOrCompute coalesces concurrent misses for the same key into
// a single producer call, which is the primary guard on provider quota.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// entry is one cached value. lastAccessed drives eviction, insertedAt+ttl
// drives expiry.
type entry struct {
	value        interface{}
	keyType      KeyType
	insertedAt   time.Time
	ttl          time.Duration
	accessCount  int64
	lastAccessed time.Time
}

func (e *entry) expiredAt(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Metrics is a point-in-time snapshot of cache health.
type Metrics struct {
	Entries        int            `json:"entries"`
	ByType         map[string]int `json:"byType"`
	HitCount       int64          `json:"hitCount"`
	MissCount      int64          `json:"missCount"`
	HitRate        float64        `json:"hitRate"`
	Evictions      int64          `json:"evictions"`
	Expirations    int64          `json:"expirations"`
	MemoryEstimate int64          `json:"memoryEstimateBytes"`
	OldestEntryAge string         `json:"oldestEntryAge,omitempty"`
	NewestEntryAge string         `json:"newestEntryAge,omitempty"`
	WarmingStatus  string         `json:"warmingStatus"`
}

// WarmEntry pre-seeds one current_rate entry from a caller-supplied
// snapshot.
type WarmEntry struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// Cache is the process-global rate cache. All mutation happens under one
// mutex; producers for GetOrCompute run outside it, coalesced per key by
// the singleflight group.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int

	flight singleflight.Group
	logger *zap.Logger

	hitCount    int64
	missCount   int64
	evictions   int64
	expirations int64

	warmedAt *time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a cache bounded to capacity entries.
func New(capacity int, logger *zap.Logger) *Cache {
	if capacity <= 0 {
		capacity = 2000
	}
	return &Cache{
		entries:  make(map[string]*entry),
		capacity: capacity,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// fullKey namespaces the caller key with its type so the same bare key can
// live under several types without cross-talk.
func fullKey(key string, kt KeyType) string {
	return string(kt) + "|" + key
}

// Get returns the cached value for (key, type), or false on miss. An
// expired entry counts as a miss and is removed on the spot.
func (c *Cache) Get(key string, kt KeyType) (interface{}, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fullKey(key, kt)]
	if !ok {
		c.missCount++
		return nil, false
	}
	if e.expiredAt(now) {
		delete(c.entries, fullKey(key, kt))
		c.expirations++
		c.missCount++
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	c.hitCount++
	return e.value, true
}

// Set stores value under (key, type) with the type's TTL. At capacity the
// entry with the oldest last access goes first.
func (c *Cache) Set(key string, kt KeyType, value interface{}) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	fk := fullKey(key, kt)
	if _, exists := c.entries[fk]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[fk] = &entry{
		value:        value,
		keyType:      kt,
		insertedAt:   now,
		ttl:          kt.TTL(),
		accessCount:  0,
		lastAccessed: now,
	}
}

// evictOldestLocked removes the entry with the oldest lastAccessed. Caller
// holds the mutex.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.lastAccessed.Before(oldest) {
			oldestKey = k
			oldest = e.lastAccessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Invalidate removes entries whose bare key contains pattern, optionally
// restricted to one key type. Empty pattern and empty type clear
// everything. Returns the number of removed entries.
func (c *Cache) Invalidate(pattern string, kt KeyType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fk, e := range c.entries {
		if kt != "" && e.keyType != kt {
			continue
		}
		bare := strings.TrimPrefix(fk, string(e.keyType)+"|")
		if pattern != "" && !strings.Contains(bare, pattern) {
			continue
		}
		delete(c.entries, fk)
		removed++
	}
	return removed
}

// InvalidateAll clears the cache and returns the number of removed
// entries.
func (c *Cache) InvalidateAll() int {
	return c.Invalidate("", "")
}

// GetOrCompute returns the cached value for (key, type) or runs producer
// to fill it. Concurrent callers missing on the same key share one
// producer invocation and its result; producer errors are returned but
// never cached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, kt KeyType, producer func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key, kt); ok {
		return v, nil
	}

	fk := fullKey(key, kt)
	v, err, _ := c.flight.Do(fk, func() (interface{}, error) {
		// A racing caller may have stored between the miss and here.
		if v, ok := c.Get(key, kt); ok {
			return v, nil
		}
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, kt, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Warm pre-seeds current_rate entries from a caller-supplied snapshot and
// records the warming time for metrics.
func (c *Cache) Warm(rates []WarmEntry) int {
	seeded := 0
	for _, r := range rates {
		if r.From == "" || r.To == "" || !r.Rate.IsPositive() {
			continue
		}
		c.Set(CurrentRateKey(r.From, r.To), KeyCurrentRate, r.Rate)
		seeded++
	}
	now := time.Now()
	c.mu.Lock()
	c.warmedAt = &now
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("cache warmed", zap.Int("seeded", seeded))
	}
	return seeded
}

// Metrics returns a snapshot of cache counters and entry ages.
func (c *Cache) Metrics() Metrics {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		Entries:       len(c.entries),
		ByType:        make(map[string]int),
		HitCount:      c.hitCount,
		MissCount:     c.missCount,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		WarmingStatus: "cold",
	}
	if c.warmedAt != nil {
		m.WarmingStatus = "warmed at " + c.warmedAt.UTC().Format(time.RFC3339)
	}
	if total := c.hitCount + c.missCount; total > 0 {
		m.HitRate = float64(c.hitCount) / float64(total)
	}

	var oldest, newest time.Time
	var bytes int64
	for fk, e := range c.entries {
		m.ByType[string(e.keyType)]++
		// Rough per-entry footprint: key bytes plus a fixed struct and
		// boxed-value estimate.
		bytes += int64(len(fk)) + 96
		if oldest.IsZero() || e.insertedAt.Before(oldest) {
			oldest = e.insertedAt
		}
		if newest.IsZero() || e.insertedAt.After(newest) {
			newest = e.insertedAt
		}
	}
	m.MemoryEstimate = bytes
	if !oldest.IsZero() {
		m.OldestEntryAge = now.Sub(oldest).Round(time.Second).String()
		m.NewestEntryAge = now.Sub(newest).Round(time.Second).String()
	}
	return m
}

// StartHousekeeping launches the periodic purge of expired entries. Call
// Stop to terminate it.
func (c *Cache) StartHousekeeping(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purged := c.purgeExpired()
				if c.logger != nil {
					m := c.Metrics()
					c.logger.Debug("cache housekeeping",
						zap.Int("purged", purged),
						zap.Int("entries", m.Entries),
						zap.Float64("hitRate", m.HitRate),
						zap.Int64("memoryEstimate", m.MemoryEstimate))
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates housekeeping and waits for it to exit. Safe to call
// more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Cache) purgeExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for fk, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, fk)
			c.expirations++
			purged++
		}
	}
	return purged
}
