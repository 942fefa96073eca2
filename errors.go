package pagestore

import "errors"

// Sentinel errors returned by the storage core. Callers should use
// errors.Is against these values rather than comparing strings.
var (
	// ErrInvalidOffset is returned when a read or write offset falls
	// below HeaderSize.
	ErrInvalidOffset = errors.New("pagestore: invalid offset")

	// ErrPageOverflow is returned when a write would run past PageSize.
	ErrPageOverflow = errors.New("pagestore: page overflow")

	// ErrInvalidLength is returned by Read for a zero-length request.
	ErrInvalidLength = errors.New("pagestore: invalid length")

	// ErrChecksumMismatch is returned when a deserialized page's stored
	// checksum does not match the checksum recomputed over its bytes.
	ErrChecksumMismatch = errors.New("pagestore: checksum mismatch")

	// ErrInvalidFreeSpaceOffset is returned by Validate when
	// free_space_offset falls outside [HeaderSize, PageSize].
	ErrInvalidFreeSpaceOffset = errors.New("pagestore: invalid free space offset")

	// ErrPageNotFound is returned by Pager.Write for an identifier that
	// is not currently resident in the pager.
	ErrPageNotFound = errors.New("pagestore: page not found")

	// ErrShortRead marks a partial page read (1..PageSize-1 bytes) as
	// corruption rather than a clean end-of-file.
	ErrShortRead = errors.New("pagestore: short read")

	// ErrOutOfMemory is returned when the memory pool cannot grow to
	// satisfy an Acquire call.
	ErrOutOfMemory = errors.New("pagestore: out of memory")

	// ErrStorageClosed is returned by Pager operations issued after
	// Teardown.
	ErrStorageClosed = errors.New("pagestore: pager is closed")
)
