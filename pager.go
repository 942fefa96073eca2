package pagestore

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Storage is the positioned I/O surface a Pager needs from its backing
// store: pread/pwrite semantics that never advance a shared cursor, so
// concurrent reads/writes to disjoint offsets are safe at the OS level.
// *os.File satisfies this; tests substitute an in-memory fake.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

const (
	// DefaultCacheSize is the Pager's default resident-page bound.
	DefaultCacheSize = 1024

	// DefaultPoolInitialPages is the Pager's default memory pool
	// up-front allocation.
	DefaultPoolInitialPages = 16
)

// PagerConfig configures Open. Zero values fall back to sensible defaults.
type PagerConfig struct {
	// CacheSize bounds the number of pages kept resident at once.
	CacheSize int

	// PoolInitialPages is how many page buffers the memory pool
	// allocates up front.
	PoolInitialPages int

	// Logger receives structured diagnostics (page allocation,
	// eviction of dirty pages, checksum failures). Defaults to
	// logrus.StandardLogger().
	Logger *logrus.Logger
}

func (cfg PagerConfig) withDefaults() PagerConfig {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.PoolInitialPages <= 0 {
		cfg.PoolInitialPages = DefaultPoolInitialPages
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return cfg
}

// Pager is the façade between the on-disk file and callers: it maps page
// identifiers to byte offsets, reads and writes pages through Storage, and
// keeps recently accessed pages resident via an internal PageCache. Scratch
// I/O buffers for reads and writes come from an internal MemoryPool.
//
// The Pager's own page table IS a PageCache: there is deliberately no
// second, separate map duplicating cache bookkeeping.
//
// A Pager is not safe for concurrent use without external synchronization,
// and never performs write-back on eviction: a caller that mutates a page
// must call Write before the page could be evicted or dropped, or the
// mutation is lost.
type Pager struct {
	storage  Storage
	closer   io.Closer
	cache    *PageCache
	pool     *MemoryPool
	fileSize int64
	log      *logrus.Entry
	closed   bool

	// instanceID disambiguates one Pager's log lines from another's when
	// several are opened in the same process (e.g. one per shard).
	instanceID uuid.UUID
}

// Open opens or creates path for read/write, never truncating existing
// contents, and returns a Pager backed by it.
func Open(path string, cfg PagerConfig) (*Pager, error) {
	cfg = cfg.withDefaults()

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pagestore: stat %s: %w", path, err)
	}

	pager := newPager(file, file, info.Size(), cfg)
	pager.log = pager.log.WithField("path", path)
	pager.log.Debug("pager opened")
	return pager, nil
}

// OpenStorage wires a Pager directly on top of an arbitrary Storage
// implementation (an in-memory fake in tests, or any embedder-supplied
// backing store) rather than a local file. initialSize is the current
// high-water mark of storage, in bytes.
func OpenStorage(storage Storage, initialSize int64, cfg PagerConfig) *Pager {
	cfg = cfg.withDefaults()
	return newPager(storage, nil, initialSize, cfg)
}

func newPager(storage Storage, closer io.Closer, initialSize int64, cfg PagerConfig) *Pager {
	return newPagerWithAllocator(storage, closer, initialSize, cfg, newAlignedBuffer)
}

func newPagerWithAllocator(storage Storage, closer io.Closer, initialSize int64, cfg PagerConfig, alloc func() Buffer) *Pager {
	pool := NewMemoryPoolWithAllocator(cfg.PoolInitialPages, alloc)
	id := uuid.New()
	return &Pager{
		storage:    storage,
		closer:     closer,
		cache:      NewPageCache(cfg.CacheSize, pool),
		pool:       pool,
		fileSize:   initialSize,
		instanceID: id,
		log:        cfg.Logger.WithField("component", "pager").WithField("pager_id", id.String()),
	}
}

// Get returns the page for id. On a cache hit it is returned directly. On
// a miss, Get reads PageSize bytes at id.Offset(): a clean end-of-file
// (zero bytes read) allocates and caches a fresh Data page; a successful
// full read is deserialized, checksum-verified, and cached; a checksum
// mismatch or any other I/O failure is surfaced without caching anything.
func (p *Pager) Get(id PageIdentifier) (*Page, error) {
	if p.closed {
		return nil, ErrStorageClosed
	}
	if page, ok := p.cache.Get(id); ok {
		return page, nil
	}

	buf, err := p.pool.Acquire()
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(buf)

	offset := id.Offset()
	n, err := p.storage.ReadAt(buf, offset)
	switch {
	case n == 0 && err != nil && isEOF(err):
		page := NewPage(PageKindData, id)
		p.insert(page)
		p.log.WithField("page_id", uint32(id)).Debug("read miss past end of file, allocated fresh page")
		return page, nil
	case n > 0 && n < PageSize:
		return nil, fmt.Errorf("pagestore: read page %d at offset %d: %w", id, offset, ErrShortRead)
	case err != nil && !isEOF(err):
		return nil, fmt.Errorf("pagestore: read page %d: %w", id, err)
	}

	page, err := Deserialize(buf)
	if err != nil {
		p.log.WithFields(logrus.Fields{"page_id": uint32(id), "error": err}).Error("page failed validation on read")
		return nil, err
	}
	p.insert(page)
	return page, nil
}

// Write serializes the in-memory page identified by id and writes it to
// storage at id.Offset(), extending the tracked file size high-water mark
// if needed. It fails with ErrPageNotFound if id is not currently
// resident; Write never reads a page in from disk on the caller's behalf.
func (p *Pager) Write(id PageIdentifier) error {
	if p.closed {
		return ErrStorageClosed
	}
	page, ok := p.cache.Get(id)
	if !ok {
		return ErrPageNotFound
	}

	buf, err := p.pool.Acquire()
	if err != nil {
		return err
	}
	defer p.pool.Release(buf)

	page.SerializeInto(buf)
	offset := id.Offset()
	if _, err := p.storage.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("pagestore: write page %d: %w", id, err)
	}
	if newSize := offset + PageSize; newSize > p.fileSize {
		p.fileSize = newSize
	}
	page.MarkClean()
	return nil
}

// WriteBatch sorts a copy of ids ascending and calls Write for each in
// that order, so the sequence of offsets written is strictly
// non-decreasing regardless of input order. Duplicate identifiers are not
// deduplicated and produce one write each. Atomicity is per-page only: a
// failure partway through leaves earlier pages in the batch written.
func (p *Pager) WriteBatch(ids []PageIdentifier) error {
	sorted := make([]PageIdentifier, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if err := p.Write(id); err != nil {
			return fmt.Errorf("pagestore: write_batch page %d: %w", id, err)
		}
	}
	return nil
}

// FileSize returns the tracked high-water mark of bytes written, in
// bytes.
func (p *Pager) FileSize() int64 { return p.fileSize }

// CacheStats returns a snapshot of the internal page cache's hit/miss/
// eviction counters.
func (p *Pager) CacheStats() CacheStats { return p.cache.Stats() }

// Teardown drops all owned pages, tears down the memory pool, and closes
// the backing file (if one was opened via Open). It does not flush dirty
// pages first; callers that need durable data must call Write for every
// dirty page before calling Teardown.
func (p *Pager) Teardown() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cache.Teardown()
	p.pool.Teardown()
	if p.closer != nil {
		if err := p.closer.Close(); err != nil {
			return fmt.Errorf("pagestore: close storage: %w", err)
		}
	}
	return nil
}

// insert caches page, logging (but never flushing) a dirty victim if
// capacity forced an eviction. See the PageCache doc comment: write-back
// before eviction is the caller's job, not this package's.
func (p *Pager) insert(page *Page) {
	evictedID, evictedPage, evicted := p.cache.Put(page)
	if evicted && evictedPage.IsDirty() {
		p.log.WithField("page_id", uint32(evictedID)).Warn("evicted dirty page without write-back")
	}
}

func isEOF(err error) bool {
	return err == io.EOF
}
