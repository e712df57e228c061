package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ZaguanLabs/livetl"
)

const (
	// DefaultCapacity is the default maximum number of entries.
	DefaultCapacity = 1500
	// DefaultRetainRatio is the share of capacity kept by an eviction pass.
	DefaultRetainRatio = 0.75
	// DefaultOldestRatio is the share of entries dropped by the timestamp fallback.
	DefaultOldestRatio = 0.25
)

// cacheEntry holds a cached resolution with its access bookkeeping.
type cacheEntry struct {
	key         string
	value       livetl.Resolution
	lastAccess  time.Time
	accessCount int
}

// Memory is a thread-safe bounded in-memory cache.
//
// When an insert finds the cache full, an eviction pass shrinks it to the
// retain ratio, keeping the most recently accessed entries (higher access
// count breaks ties). If that pass fails, the oldest entries by timestamp are
// dropped; if that fails too, the cache is cleared.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	capacity    int
	retainRatio float64
	clock       func() time.Time
	logger      *slog.Logger

	// rankHook runs inside the primary eviction tier; tests use it to force failures.
	rankHook func()
	// oldestHook runs inside the timestamp tier.
	oldestHook func()
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock sets the time source used for access timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Memory) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for eviction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Memory) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetainRatio sets the share of capacity an eviction pass keeps.
// Values outside (0, 1) are ignored.
func WithRetainRatio(ratio float64) Option {
	return func(c *Memory) {
		if ratio > 0 && ratio < 1 {
			c.retainRatio = ratio
		}
	}
}

// NewMemory creates a cache holding at most capacity entries.
// If capacity is 0 or negative, DefaultCapacity is used.
func NewMemory(capacity int, opts ...Option) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Memory{
		entries:     make(map[string]*cacheEntry),
		capacity:    capacity,
		retainRatio: DefaultRetainRatio,
		clock:       time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a resolution and refreshes its recency.
func (c *Memory) Get(key string) (livetl.Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return livetl.Resolution{}, false
	}
	entry.lastAccess = c.clock()
	entry.accessCount++
	return entry.value, true
}

// Set stores a resolution. When every eviction tier fails the cache is
// cleared, the value is still stored and a *livetl.CacheError is returned.
func (c *Memory) Set(key string, value livetl.Resolution) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.value = value
		entry.lastAccess = c.clock()
		entry.accessCount++
		return nil
	}

	var err error
	if len(c.entries) >= c.capacity {
		err = c.evictLocked()
	}

	c.entries[key] = &cacheEntry{
		key:         key,
		value:       value,
		lastAccess:  c.clock(),
		accessCount: 1,
	}
	return err
}

// Delete removes a single entry.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries in the cache.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *Memory) Capacity() int {
	return c.capacity
}

// Clear removes all entries from the cache.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// EntryInfo is a read-only view of one cache entry.
type EntryInfo struct {
	Key         string
	Value       livetl.Resolution
	LastAccess  time.Time
	AccessCount int
}

// Entries returns all entries, most recently accessed first.
func (c *Memory) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ranked := c.rankedLocked()
	out := make([]EntryInfo, len(ranked))
	for i, e := range ranked {
		out[i] = EntryInfo{Key: e.key, Value: e.value, LastAccess: e.lastAccess, AccessCount: e.accessCount}
	}
	return out
}

// evictLocked shrinks the cache (must be called with lock held).
func (c *Memory) evictLocked() error {
	before := len(c.entries)
	target := int(float64(c.capacity) * c.retainRatio)

	err := c.tier(func() { c.evictByRank(target) })
	if err == nil {
		c.logger.Debug("cache eviction", "tier", "rank", "before", before, "after", len(c.entries))
		return nil
	}
	c.logger.Warn("cache eviction by rank failed, dropping oldest entries", "entries", len(c.entries), "error", err)

	err = c.tier(func() { c.evictOldest(int(float64(len(c.entries)) * DefaultOldestRatio)) })
	if err == nil {
		c.logger.Debug("cache eviction", "tier", "oldest", "before", before, "after", len(c.entries))
		return nil
	}
	c.logger.Warn("cache eviction by timestamp failed, clearing cache", "entries", len(c.entries), "error", err)

	c.entries = make(map[string]*cacheEntry)
	return &livetl.CacheError{Message: "eviction failed, cache cleared", Cause: err}
}

// tier runs one eviction strategy and fails if it panics or leaves the
// cache full.
func (c *Memory) tier(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	if len(c.entries) >= c.capacity {
		return fmt.Errorf("%d entries left at capacity %d", len(c.entries), c.capacity)
	}
	return nil
}

func (c *Memory) evictByRank(target int) {
	if c.rankHook != nil {
		c.rankHook()
	}
	ranked := c.rankedLocked()
	if target >= len(ranked) {
		return
	}
	for _, e := range ranked[target:] {
		delete(c.entries, e.key)
	}
}

func (c *Memory) evictOldest(n int) {
	if c.oldestHook != nil {
		c.oldestHook()
	}
	if n < 1 {
		n = 1
	}
	oldest := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		oldest = append(oldest, e)
	}
	sort.Slice(oldest, func(i, j int) bool {
		if !oldest[i].lastAccess.Equal(oldest[j].lastAccess) {
			return oldest[i].lastAccess.Before(oldest[j].lastAccess)
		}
		return oldest[i].key < oldest[j].key
	})
	if n > len(oldest) {
		n = len(oldest)
	}
	for _, e := range oldest[:n] {
		delete(c.entries, e.key)
	}
}

// rankedLocked orders entries by retention priority: most recent access
// first, then higher access count, then key for determinism.
func (c *Memory) rankedLocked() []*cacheEntry {
	ranked := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if !a.lastAccess.Equal(b.lastAccess) {
			return a.lastAccess.After(b.lastAccess)
		}
		if a.accessCount != b.accessCount {
			return a.accessCount > b.accessCount
		}
		return a.key < b.key
	})
	return ranked
}

// Verify Memory implements ResolutionCache
var _ ResolutionCache = (*Memory)(nil)
