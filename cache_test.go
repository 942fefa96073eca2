package pagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests control last_access_ts deterministically instead of
// depending on wall-clock resolution.
type fakeClock struct{ t int64 }

func (c *fakeClock) now() int64 { return c.t }

func newTestCache(maxSize int) (*PageCache, *fakeClock) {
	clock := &fakeClock{}
	cache := NewPageCache(maxSize, nil)
	cache.now = clock.now
	return cache, clock
}

func TestPageCacheGetMissThenHit(t *testing.T) {
	cache, _ := newTestCache(4)
	_, ok := cache.Get(1)
	assert.False(t, ok)

	cache.Put(NewPage(PageKindData, 1))
	page, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, PageIdentifier(1), page.ID())

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestPageCacheEvictsSmallestLastAccessTS(t *testing.T) {
	cache, clock := newTestCache(2)

	clock.t = 1
	cache.Put(NewPage(PageKindData, 1))
	clock.t = 2
	cache.Put(NewPage(PageKindData, 2))

	// touch id 1 so id 2 becomes the least recently used
	clock.t = 3
	cache.Get(1)

	clock.t = 4
	evictedID, evictedPage, evicted := cache.Put(NewPage(PageKindData, 3))
	require.True(t, evicted)
	assert.Equal(t, PageIdentifier(2), evictedID)
	assert.Equal(t, PageIdentifier(2), evictedPage.ID())
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, uint64(1), cache.Stats().Evictions)
}

func TestPageCacheEvictionTiesBrokenByIdentifier(t *testing.T) {
	cache, clock := newTestCache(2)
	clock.t = 5
	cache.Put(NewPage(PageKindData, 9))
	cache.Put(NewPage(PageKindData, 3))

	evictedID, _, evicted := cache.Put(NewPage(PageKindData, 100))
	require.True(t, evicted)
	assert.Equal(t, PageIdentifier(3), evictedID, "tie on last_access_ts broken by smallest identifier")
}

func TestPageCacheReinsertReplacesWithoutEviction(t *testing.T) {
	cache, _ := newTestCache(1)
	cache.Put(NewPage(PageKindData, 1))
	_, _, evicted := cache.Put(NewPage(PageKindIndex, 1))
	assert.False(t, evicted)

	page, ok := cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, PageKindIndex, page.Kind())
}

func TestPageCacheRemoveDoesNotCountAsEviction(t *testing.T) {
	cache, _ := newTestCache(2)
	cache.Put(NewPage(PageKindData, 1))
	page, ok := cache.Remove(1)
	require.True(t, ok)
	assert.Equal(t, PageIdentifier(1), page.ID())
	assert.Equal(t, uint64(0), cache.Stats().Evictions)
	assert.Equal(t, 0, cache.Len())
}

func TestPageCacheForEachStopsEarly(t *testing.T) {
	cache, _ := newTestCache(4)
	cache.Put(NewPage(PageKindData, 1))
	cache.Put(NewPage(PageKindData, 2))
	cache.Put(NewPage(PageKindData, 3))

	seen := 0
	cache.ForEach(func(id PageIdentifier, p *Page) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}
