package pagestore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStorage is an in-memory Storage fake with the same pread/pwrite
// EOF contract as *os.File: a ReadAt past the end of the data, or one that
// can only partially satisfy its buffer, reports io.EOF alongside however
// many bytes it actually copied. WriteAt grows the backing slice as
// needed, mirroring a file growing past its current length, and records
// the offset of every write in order.
type memoryStorage struct {
	data   []byte
	writes []int64
}

func (s *memoryStorage) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *memoryStorage) WriteAt(p []byte, off int64) (int, error) {
	s.writes = append(s.writes, off)
	end := off + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	return copy(s.data[off:end], p), nil
}

func newTestPager(t *testing.T, cacheSize int) (*Pager, *memoryStorage) {
	t.Helper()
	storage := &memoryStorage{}
	pager := OpenStorage(storage, 0, PagerConfig{CacheSize: cacheSize, PoolInitialPages: 2})
	t.Cleanup(func() { _ = pager.Teardown() })
	return pager, storage
}

func TestPagerGetPastEOFAllocatesFreshDataPage(t *testing.T) {
	pager, _ := newTestPager(t, 8)
	page, err := pager.Get(3)
	require.NoError(t, err)
	assert.Equal(t, PageKindData, page.Kind())
	assert.Equal(t, PageIdentifier(3), page.ID())
}

func TestPagerWriteExtendsFileSize(t *testing.T) {
	pager, _ := newTestPager(t, 8)
	page, err := pager.Get(2)
	require.NoError(t, err)
	require.NoError(t, page.Write(HeaderSize, []byte("x")))

	require.NoError(t, pager.Write(2))
	assert.Equal(t, int64(3)*PageSize, pager.FileSize())
}

func TestPagerWriteUnknownPageFails(t *testing.T) {
	pager, _ := newTestPager(t, 8)
	err := pager.Write(99)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestPagerRoundTripsThroughStorage(t *testing.T) {
	pager, storage := newTestPager(t, 8)

	page, err := pager.Get(0)
	require.NoError(t, err)
	require.NoError(t, page.Write(HeaderSize, []byte("persisted")))
	require.NoError(t, pager.Write(0))

	assert.GreaterOrEqual(t, len(storage.data), PageSize)

	reopened := OpenStorage(storage, int64(len(storage.data)), PagerConfig{CacheSize: 8, PoolInitialPages: 2})
	defer reopened.Teardown()

	got, err := reopened.Get(0)
	require.NoError(t, err)
	view, err := got.Read(HeaderSize, len("persisted"))
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), view)
}

func TestPagerWriteBatchIsSortedAscending(t *testing.T) {
	pager, storage := newTestPager(t, 8)

	for _, id := range []PageIdentifier{5, 1, 3} {
		_, err := pager.Get(id)
		require.NoError(t, err)
	}

	require.NoError(t, pager.WriteBatch([]PageIdentifier{5, 1, 3}))
	assert.Equal(t, []int64{1 * PageSize, 3 * PageSize, 5 * PageSize}, storage.writes)
	assert.Equal(t, int64(6)*PageSize, pager.FileSize())
	assert.Equal(t, int(6*PageSize), len(storage.data))
}

func TestPagerChecksumMismatchPropagatesWithoutCaching(t *testing.T) {
	storage := &memoryStorage{data: make([]byte, PageSize)}
	page := NewPage(PageKindData, 0)
	page.SerializeInto(storage.data)
	// flip a bit in the stored checksum to corrupt it.
	storage.data[HeaderSize-1] ^= 0x01

	pager := OpenStorage(storage, PageSize, PagerConfig{CacheSize: 8, PoolInitialPages: 2})
	defer pager.Teardown()

	_, err := pager.Get(0)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, 0, pager.cache.Len())
}

func TestPagerOperationsFailAfterTeardown(t *testing.T) {
	pager, _ := newTestPager(t, 8)
	require.NoError(t, pager.Teardown())

	_, err := pager.Get(0)
	assert.ErrorIs(t, err, ErrStorageClosed)

	err = pager.Write(0)
	assert.ErrorIs(t, err, ErrStorageClosed)

	// repeat teardown is a no-op, not an error
	assert.NoError(t, pager.Teardown())
}

func TestPagerCacheStatsPassthrough(t *testing.T) {
	pager, _ := newTestPager(t, 8)
	_, err := pager.Get(1)
	require.NoError(t, err)
	_, err = pager.Get(1)
	require.NoError(t, err)

	stats := pager.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}
