package impression

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/impression-cli/internal/geo"
)

// DefaultCacheCapacity is the number of locations kept by default.
const DefaultCacheCapacity = 1000

// Cache is a concurrent-safe LRU of raw scores keyed by exact coordinates.
// Concurrent misses on one key share a single computation. Entries computed
// before a Purge are never stored after it.
type Cache struct {
	mu         sync.Mutex
	entries    map[geo.Location]*cacheEntry
	head       *cacheEntry // most recently used
	tail       *cacheEntry // least recently used
	maxEntries int
	generation uint64

	group    singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

type cacheEntry struct {
	key   geo.Location
	value float64
	prev  *cacheEntry
	next  *cacheEntry
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Computes   int64   `json:"computes"`
	HitRate    float64 `json:"hit_rate"`
	Generation uint64  `json:"generation"`
}

// NewCache creates a cache holding at most maxEntries locations.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = DefaultCacheCapacity
	}
	return &Cache{
		entries:    make(map[geo.Location]*cacheEntry),
		maxEntries: maxEntries,
	}
}

// Get returns the cached score for loc.
func (c *Cache) Get(loc geo.Location) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[loc]
	if !ok {
		return 0, false
	}
	c.moveToFront(e)
	return e.value, true
}

// GetOrCompute returns the cached score for loc, or runs compute, stores the
// result, and returns it. The boolean reports a cache hit.
func (c *Cache) GetOrCompute(loc geo.Location, compute func() (float64, error)) (float64, bool, error) {
	if v, ok := c.Get(loc); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	key := fmt.Sprintf("%d:%x:%x", gen, math.Float64bits(loc.Lat), math.Float64bits(loc.Lon))
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(loc); ok {
			return v, nil
		}
		c.computes.Add(1)
		v, err := compute()
		if err != nil {
			return 0.0, err
		}
		c.put(gen, loc, v)
		return v, nil
	})
	if err != nil {
		return 0, false, err
	}
	return v.(float64), false, nil
}

// put stores a value unless the cache was purged since gen was read.
func (c *Cache) put(gen uint64, loc geo.Location, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	if e, ok := c.entries[loc]; ok {
		e.value = v
		c.moveToFront(e)
		return
	}

	e := &cacheEntry{key: loc, value: v}
	c.entries[loc] = e
	c.addToFront(e)
	for len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Purge drops every entry. Call it whenever the segment set changes.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[geo.Location]*cacheEntry)
	c.head, c.tail = nil, nil
	c.generation++
}

// Len returns the number of cached locations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	gen := c.generation
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		Computes:   c.computes.Load(),
		HitRate:    hitRate,
		Generation: gen,
	}
}

func (c *Cache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *cacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
