package pagestore

import "github.com/cespare/xxhash/v2"

// checksum computes the 32-bit truncation of a 64-bit xxhash digest over
// header (which must already have its checksum bytes zeroed or excluded)
// followed by data. Deterministic across runs and platforms, which is all
// the on-disk format requires of it.
func checksum(header, data []byte) uint32 {
	d := xxhash.New()
	d.Write(header)
	d.Write(data)
	return uint32(d.Sum64())
}
