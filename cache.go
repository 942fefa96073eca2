package pagestore

import "time"

// cacheEntry pairs a cached page with the bookkeeping PageCache needs to
// pick an eviction victim.
type cacheEntry struct {
	page         *Page
	lastAccessTS int64 // monotonic seconds-since-epoch
	accessCount  uint64
}

// CacheStats summarizes a PageCache's behavior, in the spirit of the
// hit/miss/eviction counters production page caches surface for
// operational visibility.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// PageCache is a bounded identifier-to-page table with approximate-LRU
// eviction: the resident entry with the smallest last-access timestamp is
// evicted to make room, ties broken by the smallest identifier so
// behavior is deterministic under a fully loaded cache.
//
// PageCache does no pinning, dirty tracking, or write-back on eviction:
// an evicted dirty page is simply dropped. Flushing a page before it can
// be evicted is the caller's responsibility (in practice, the Pager's).
//
// A PageCache is not safe for concurrent use without external
// synchronization.
type PageCache struct {
	entries map[PageIdentifier]*cacheEntry
	maxSize int

	// pool is kept for future buffer-lease integration (handing a
	// cached page's backing bytes back to the pool on eviction instead
	// of letting the GC reclaim them) but is not required for, and does
	// not affect, today's correctness.
	pool *MemoryPool

	now   func() int64
	stats CacheStats
}

// NewPageCache creates an empty cache bounded at maxSize entries. pool may
// be nil; it is stashed for future buffer-lease integration only.
func NewPageCache(maxSize int, pool *MemoryPool) *PageCache {
	return &PageCache{
		entries: make(map[PageIdentifier]*cacheEntry, maxSize),
		maxSize: maxSize,
		pool:    pool,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// Get returns the cached page for id, refreshing its recency on a hit.
func (c *PageCache) Get(id PageIdentifier) (*Page, bool) {
	e, ok := c.entries[id]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e.lastAccessTS = c.now()
	e.accessCount++
	c.stats.Hits++
	return e.page, true
}

// Put inserts page, keyed by its own identifier. If the cache is at
// capacity and page's identifier is not already present, the entry with
// the smallest last_access_ts (ties broken by the smallest identifier) is
// evicted first. Re-inserting an identifier already present replaces its
// entry and resets its recency. Put reports the evicted identifier and
// page, if any, purely for informational purposes; PageCache itself never
// flushes the evicted page.
func (c *PageCache) Put(page *Page) (evictedID PageIdentifier, evictedPage *Page, evicted bool) {
	id := page.ID()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxSize {
		evictedID, evictedPage, evicted = c.evictOne()
	}
	c.entries[id] = &cacheEntry{
		page:         page,
		lastAccessTS: c.now(),
		accessCount:  0,
	}
	return evictedID, evictedPage, evicted
}

// Remove drops id from the cache, if present, without reporting it as an
// eviction (Stats.Evictions is unaffected).
func (c *PageCache) Remove(id PageIdentifier) (*Page, bool) {
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	return e.page, true
}

// Len returns the number of resident entries.
func (c *PageCache) Len() int { return len(c.entries) }

// Stats returns a snapshot of the cache's hit/miss/eviction counters.
func (c *PageCache) Stats() CacheStats { return c.stats }

// ForEach calls f for every resident (identifier, page) pair, stopping
// early if f returns false. Iteration order is unspecified.
func (c *PageCache) ForEach(f func(PageIdentifier, *Page) bool) {
	for id, e := range c.entries {
		if !f(id, e.page) {
			return
		}
	}
}

// Teardown drops every held page.
func (c *PageCache) Teardown() {
	c.entries = make(map[PageIdentifier]*cacheEntry)
}

func (c *PageCache) evictOne() (PageIdentifier, *Page, bool) {
	var victim PageIdentifier
	var found bool
	for id := range c.entries {
		if !found {
			victim = id
			found = true
			continue
		}
		e, v := c.entries[id], c.entries[victim]
		if e.lastAccessTS < v.lastAccessTS || (e.lastAccessTS == v.lastAccessTS && id < victim) {
			victim = id
		}
	}
	if !found {
		return 0, nil, false
	}
	page := c.entries[victim].page
	delete(c.entries, victim)
	c.stats.Evictions++
	return victim, page, true
}
