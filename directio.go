package pagestore

import (
	"fmt"
	"os"

	"github.com/ncw/directio"
)

// directStorage backs a Pager with an O_DIRECT file: reads and writes
// bypass the page cache of the host OS entirely, trading a kernel-level
// copy for the caller's own discipline about alignment and size. It only
// makes sense paired with a MemoryPool allocating directio.AlignedBlock
// buffers, since O_DIRECT rejects I/O through buffers that aren't aligned
// to the platform's block size.
type directStorage struct {
	file *os.File
}

// OpenDirect opens or creates path for unbuffered, page-aligned I/O and
// returns a Pager backed by it. PageSize (4096) is a whole multiple of
// every block size directio supports, so every page read or write is a
// single aligned transfer with no kernel-side buffering.
//
// Direct I/O is the same trade the wider ecosystem reaches for when a
// storage engine wants to own its own cache discipline instead of
// fighting the OS page cache over it.
func OpenDirect(path string, cfg PagerConfig) (*Pager, error) {
	cfg = cfg.withDefaults()

	file, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s (direct): %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pagestore: stat %s: %w", path, err)
	}

	storage := &directStorage{file: file}
	pager := newPagerWithAllocator(storage, file, info.Size(), cfg, alignedDirectBuffer)
	pager.log = pager.log.WithField("path", path).WithField("io", "direct")
	pager.log.Debug("pager opened in direct I/O mode")
	return pager, nil
}

func (s *directStorage) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

func (s *directStorage) WriteAt(p []byte, off int64) (int, error) {
	return s.file.WriteAt(p, off)
}

// alignedDirectBuffer allocates a PageSize buffer aligned to the
// platform's direct I/O block size, required for O_DIRECT transfers to
// succeed at all on most kernels.
func alignedDirectBuffer() Buffer {
	return Buffer(directio.AlignedBlock(PageSize))
}
