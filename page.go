// Package pagestore implements the page-oriented storage core of an
// embryonic relational database: a fixed-size checksummed page format, a
// bounded memory pool of page-sized buffers, an LRU page cache, and a
// Pager façade that maps page identifiers onto a backing file.
package pagestore

import (
	"encoding/binary"
	"fmt"
)

const (
	// PageSize is the fixed on-disk and in-memory size of every page.
	PageSize = 4096

	// HeaderSize is the size of the packed PageHeader prefix.
	HeaderSize = 24

	// MaxData is the number of bytes available in the data region.
	MaxData = PageSize - HeaderSize
)

// PageIdentifier is a stable handle for a page; identifier 0 is valid.
// The byte offset of a page in the backing file is PageIdentifier * PageSize.
type PageIdentifier uint32

// Offset returns the byte offset of the page within the backing file.
func (id PageIdentifier) Offset() int64 {
	return int64(id) * int64(PageSize)
}

// PageKind tags the contents of a page. Unrecognized values read back from
// disk are preserved verbatim rather than rejected, so future page kinds
// can be introduced without breaking old files.
type PageKind uint8

const (
	PageKindData PageKind = iota
	PageKindIndex
	PageKindOverflow
	PageKindFree
)

func (k PageKind) String() string {
	switch k {
	case PageKindData:
		return "Data"
	case PageKindIndex:
		return "Index"
	case PageKindOverflow:
		return "Overflow"
	case PageKindFree:
		return "Free"
	default:
		return fmt.Sprintf("Reserved(0x%02x)", uint8(k))
	}
}

// PageHeader is the 24-byte, little-endian, packed prefix of every page.
//
// On-disk layout:
//
//	offset  0  kind              u8
//	offset  1  item_count        u8
//	offset  2  free_space_offset u16
//	offset  4  page_id           u32
//	offset  8  parent_id         u32
//	offset 12  next_page         u32
//	offset 16  prev_page         u32
//	offset 20  checksum          u32
//
// item_count is carried as a single byte and there is no separate reserved
// "flags" byte: neither is exercised by any invariant or test, and PageKind
// already preserves unrecognized tag bytes verbatim, so both would just be
// unused padding against the fixed 24-byte budget.
type PageHeader struct {
	Kind            PageKind
	ItemCount       uint8
	FreeSpaceOffset uint16
	PageID          PageIdentifier
	ParentID        PageIdentifier
	NextPage        PageIdentifier
	PrevPage        PageIdentifier
	Checksum        uint32
}

func marshalHeader(h *PageHeader, buf []byte) {
	_ = buf[HeaderSize-1] // bounds check hint
	buf[0] = byte(h.Kind)
	buf[1] = h.ItemCount
	binary.LittleEndian.PutUint16(buf[2:4], h.FreeSpaceOffset)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.PageID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.ParentID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.NextPage))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.PrevPage))
	binary.LittleEndian.PutUint32(buf[20:24], h.Checksum)
}

func unmarshalHeader(buf []byte) PageHeader {
	_ = buf[HeaderSize-1]
	return PageHeader{
		Kind:            PageKind(buf[0]),
		ItemCount:       buf[1],
		FreeSpaceOffset: binary.LittleEndian.Uint16(buf[2:4]),
		PageID:          PageIdentifier(binary.LittleEndian.Uint32(buf[4:8])),
		ParentID:        PageIdentifier(binary.LittleEndian.Uint32(buf[8:12])),
		NextPage:        PageIdentifier(binary.LittleEndian.Uint32(buf[12:16])),
		PrevPage:        PageIdentifier(binary.LittleEndian.Uint32(buf[16:20])),
		Checksum:        binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// Page is the canonical in-memory image of one disk block. It owns an
// inline data array rather than a separately allocated buffer, so a single
// Page value carries its full contents without a second heap allocation
// per page.
//
// A Page is exclusively owned by whoever holds it at any instant; nothing
// in this package synchronizes concurrent access to a single Page.
type Page struct {
	header PageHeader
	data   [MaxData]byte

	// dirty is in-memory-only bookkeeping, never serialized. It lets a
	// Pager know whether a page needs to be written back before it is
	// discarded; the core itself never acts on it automatically.
	dirty bool
}

// NewPage creates a fresh page of the given kind and identifier. The data
// region is zero-filled and free_space_offset starts at HeaderSize.
func NewPage(kind PageKind, id PageIdentifier) *Page {
	p := &Page{
		header: PageHeader{
			Kind:            kind,
			FreeSpaceOffset: HeaderSize,
			PageID:          id,
		},
	}
	p.recomputeChecksum()
	return p
}

// ID returns the page's identifier.
func (p *Page) ID() PageIdentifier { return p.header.PageID }

// Kind returns the page's kind tag.
func (p *Page) Kind() PageKind { return p.header.Kind }

// Header returns a copy of the page's header.
func (p *Page) Header() PageHeader { return p.header }

// SetHeader overwrites the linkage/metadata fields of the header, leaving
// PageID and Checksum untouched by the caller (PageID is immutable after
// creation; Checksum is recomputed). Useful for maintaining item_count and
// sibling/parent linkage from a higher layer such as a B-tree.
func (p *Page) SetHeader(kind PageKind, itemCount uint8, parentID, nextPage, prevPage PageIdentifier) {
	p.header.Kind = kind
	p.header.ItemCount = itemCount
	p.header.ParentID = parentID
	p.header.NextPage = nextPage
	p.header.PrevPage = prevPage
	p.dirty = true
	p.recomputeChecksum()
}

// IsDirty reports whether the page has been mutated since it was last
// written or deserialized.
func (p *Page) IsDirty() bool { return p.dirty }

// MarkClean clears the dirty flag; Pager calls this after a successful
// write-back.
func (p *Page) MarkClean() { p.dirty = false }

// FreeSpace returns the number of unused bytes remaining in the page.
func (p *Page) FreeSpace() uint16 {
	return PageSize - p.header.FreeSpaceOffset
}

// Write copies b into the data region starting at offset (measured from
// the start of the page, so offset must be >= HeaderSize) and advances
// free_space_offset to offset+len(b) unconditionally. The caller is
// responsible for monotonic, non-overlapping writes if that's desired;
// the core does not enforce append-only semantics.
func (p *Page) Write(offset int, b []byte) error {
	if offset < HeaderSize {
		return ErrInvalidOffset
	}
	if offset+len(b) > PageSize {
		return ErrPageOverflow
	}
	copy(p.data[offset-HeaderSize:], b)
	p.header.FreeSpaceOffset = uint16(offset + len(b))
	p.dirty = true
	p.recomputeChecksum()
	return nil
}

// Read returns a borrowed view of length bytes starting at offset. The
// returned slice aliases the page's internal storage and must not be
// retained past the next mutation of the page.
func (p *Page) Read(offset, length int) ([]byte, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	if offset < HeaderSize || offset+length > PageSize {
		return nil, ErrInvalidOffset
	}
	start := offset - HeaderSize
	return p.data[start : start+length], nil
}

// Defragment compacts nothing: the core does not track record
// boundaries within the data region, so the valid prefix
// [0, free_space_offset-HeaderSize) is already exactly the bytes a caller
// wrote. Defragment's only job is to zero-fill everything past that
// prefix and recompute the checksum; it is idempotent.
func (p *Page) Defragment() {
	validLen := int(p.header.FreeSpaceOffset) - HeaderSize
	for i := validLen; i < MaxData; i++ {
		p.data[i] = 0
	}
	p.dirty = true
	p.recomputeChecksum()
}

// Validate checks I1 (free_space_offset range) and I2 (checksum), in that
// order, returning the first violation found.
func (p *Page) Validate() error {
	if p.header.FreeSpaceOffset < HeaderSize || p.header.FreeSpaceOffset > PageSize {
		return ErrInvalidFreeSpaceOffset
	}
	if p.computeChecksum() != p.header.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}

// Serialize produces the exact on-disk representation: header first, data
// second, with the checksum recomputed into the returned buffer.
func (p *Page) Serialize() [PageSize]byte {
	var buf [PageSize]byte
	p.SerializeInto(buf[:])
	return buf
}

// SerializeInto writes the page's on-disk representation into buf, which
// must be at least PageSize bytes. It exists so callers that already hold
// a pooled I/O buffer (the Pager's hot path) can avoid an extra
// allocation; Serialize is the convenient, allocating wrapper around it.
func (p *Page) SerializeInto(buf []byte) {
	_ = buf[PageSize-1]
	p.recomputeChecksum()
	marshalHeader(&p.header, buf[:HeaderSize])
	copy(buf[HeaderSize:], p.data[:])
}

// Deserialize reconstructs a Page from a PageSize-byte buffer, verifying
// the checksum. On success, I1 and I2 hold for the returned page.
func Deserialize(buf []byte) (*Page, error) {
	if len(buf) < PageSize {
		return nil, ErrInvalidLength
	}
	h := unmarshalHeader(buf[:HeaderSize])
	p := &Page{header: h}
	copy(p.data[:], buf[HeaderSize:PageSize])
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) computeChecksum() uint32 {
	var headerBuf [HeaderSize]byte
	marshalHeader(&p.header, headerBuf[:])
	// The checksum field itself (last 4 bytes of the header) is excluded
	// from the hash input, per the on-disk checksum definition.
	return checksum(headerBuf[:HeaderSize-4], p.data[:])
}

func (p *Page) recomputeChecksum() {
	p.header.Checksum = p.computeChecksum()
}
