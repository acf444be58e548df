// Package cache provides a process-local TTL key/value store used to
// memoize expensive scan results. Expired entries are treated as absent and
// removed on access; Cleanup sweeps eagerly.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a generic TTL store. Safe for concurrent use.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache whose entries default to the given TTL unless a
// per-key TTL is supplied at Set time.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value for key. An expired entry is removed and reported
// as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under write lock; another goroutine may have replaced it.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. ttl <= 0 uses the cache default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Has reports whether key holds an unexpired entry.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// GetOrSet returns the cached value for key, or invokes fetch and caches
// its result. A fetch error is returned without caching.
func (c *Cache[V]) GetOrSet(key string, fetch func() (V, error), ttl time.Duration) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Cleanup removes all expired entries without waiting for access and
// returns the number removed.
func (c *Cache[V]) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// FilterKey derives a deterministic cache key from a scan filter tuple.
// Categories are sorted so equivalent filters always share a key.
func FilterKey(minProfit decimal.Decimal, minROI float64, maxPrice decimal.Decimal, categories []string) string {
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("scan:")
	b.WriteString(minProfit.String())
	b.WriteString(":")
	b.WriteString(decimal.NewFromFloat(minROI).String())
	b.WriteString(":")
	b.WriteString(maxPrice.String())
	b.WriteString(":")
	b.WriteString(strings.Join(sorted, ","))
	return b.String()
}
