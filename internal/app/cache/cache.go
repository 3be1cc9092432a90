// Package cache memoizes final answers keyed by a fingerprint of the
// normalized query text. Eviction is strict FIFO over insertion order:
// overwriting an existing key keeps its original position.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/vialy-app/vialy-api/internal/domain"
)

// DefaultCapacity bounds the cache when no explicit size is given.
const DefaultCapacity = 100

// Entry is a cached final answer with the metadata needed to rebuild a
// full response without re-running the pipeline.
type Entry struct {
	Answer      string
	Sources     []domain.Source
	ContextUsed bool
	Category    domain.Category
	Intent      domain.Intent
}

// Cache is a bounded FIFO answer cache, safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]Entry
	order    []string
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]Entry, capacity),
	}
}

// Fingerprint derives the cache key for a query: md5 of the trimmed,
// lower-cased text, hex-encoded. Queries differing only in case or
// surrounding whitespace share an entry.
func Fingerprint(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the entry for a query, if cached.
func (c *Cache) Get(query string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[Fingerprint(query)]
	return e, ok
}

// Put stores the entry for a query, evicting the oldest insertion when
// the cache is full.
func (c *Cache) Put(query string, e Entry) {
	key := Fingerprint(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = e
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = e
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry, c.capacity)
	c.order = nil
}
