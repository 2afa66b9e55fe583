// Package analysis detects code issues with the model and caches the results
// by content address.
package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/protocolzero/codepolice/models"
)

// Entry is one cached analysis. Entries are read-only once stored.
type Entry struct {
	Key          string
	Issues       []models.Issue
	Timestamp    time.Time
	ModelVersion string
}

// Store is the optional shared second tier.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, e *Entry) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheOptions bounds the in-process tier. Zero values use the defaults.
type CacheOptions struct {
	MaxEntries    int
	TTL           time.Duration
	EvictFraction float64
}

const (
	defaultMaxEntries    = 1000
	defaultTTL           = 24 * time.Hour
	defaultEvictFraction = 0.1
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Tier2Hits int64 `json:"tier2_hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Tier2Errs int64 `json:"tier2_errors"`
	Shared    bool  `json:"shared"`
}

// Cache is the two-tier analysis cache. Tier 1 is a bounded in-process map;
// tier 2, when configured, is a shared Store whose failures are logged and
// otherwise ignored. Construct one per process and inject it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	max     int
	ttl     time.Duration
	evict   float64
	store   Store
	now     func() time.Time
	stats   Stats
}

// NewCache builds a cache. store may be nil for tier-1-only operation.
func NewCache(opts CacheOptions, store Store) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		max:     opts.MaxEntries,
		ttl:     opts.TTL,
		evict:   opts.EvictFraction,
		store:   store,
		now:     time.Now,
	}
	if c.max <= 0 {
		c.max = defaultMaxEntries
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	if c.evict <= 0 || c.evict > 1 {
		c.evict = defaultEvictFraction
	}
	return c
}

// Get looks key up in tier 1, then tier 2. A tier-2 hit is promoted into
// tier 1.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.fresh(e) {
			c.stats.Hits++
			c.mu.Unlock()
			return e, true
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if c.store != nil {
		e, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.tier2Failed("get", key, err)
		case e != nil && c.fresh(e):
			c.mu.Lock()
			c.insertLocked(e)
			c.stats.Tier2Hits++
			c.mu.Unlock()
			return e, true
		}
	}

	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores e in tier 1 and, best-effort, in tier 2. A zero Timestamp is
// set to now.
func (c *Cache) Set(ctx context.Context, e *Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	c.mu.Lock()
	c.insertLocked(e)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Set(ctx, e); err != nil {
			c.tier2Failed("set", e.Key, err)
		}
	}
}

// Evict drops key from tier 1.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// PurgeExpired drops expired tier-1 entries and returns how many went.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !c.fresh(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// PurgeShared deletes tier-2 entries older than the TTL.
func (c *Cache) PurgeShared(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.PurgeOlderThan(ctx, c.now().Add(-c.ttl))
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	s.Shared = c.store != nil
	return s
}

func (c *Cache) fresh(e *Entry) bool {
	return c.now().Sub(e.Timestamp) < c.ttl
}

// insertLocked adds e, first evicting the oldest fraction of entries when
// tier 1 is full.
func (c *Cache) insertLocked(e *Entry) {
	if _, exists := c.entries[e.Key]; !exists && len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	c.entries[e.Key] = e
}

func (c *Cache) evictOldestLocked() {
	n := int(math.Ceil(float64(c.max) * c.evict))
	if n < 1 {
		n = 1
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].Timestamp.Before(c.entries[keys[j]].Timestamp)
	})
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
	c.stats.Evictions += int64(n)
	slog.Debug("analysis cache evicted oldest entries", "evicted", n, "max", c.max)
}

func (c *Cache) tier2Failed(op, key string, err error) {
	c.mu.Lock()
	c.stats.Tier2Errs++
	c.mu.Unlock()
	slog.Warn("Shared analysis cache unavailable; using local tier only",
		"op", op,
		"key", key[:min(12, len(key))],
		"error", err,
	)
}
