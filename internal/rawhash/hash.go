// Package rawhash implements the non-cryptographic 32-bit hash shared by
// the LRU cache's key hashing and the Bloom filter's double-hashing taps.
//
// The algorithm must produce byte-identical output across platforms: byte
// order, shift widths, and overflow-wrapping multiplies are all part of the
// contract, not incidental implementation detail.
package rawhash

import "encoding/binary"

// Hash32 computes a 32-bit hash of data seeded with seed, processing four
// bytes at a time with a tail handler for the 0-3 residual bytes. It is the
// sole hash function consumed by package cache (key hashing, seed 0) and
// package bloom (base hash for the k taps, seed 0xbc9f1d34).
func Hash32(data []byte, seed uint32) uint32 {
	const m = uint32(0xc6a4a793)
	const r = uint32(24)

	n := uint32(len(data))
	h := seed ^ (n * m)

	i := uint32(0)
	for i+4 <= n {
		w := binary.LittleEndian.Uint32(data[i:])
		i += 4
		h += w
		h *= m
		h ^= h >> 16
	}

	switch n - i {
	case 3:
		h += uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h += uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h += uint32(data[i])
		h *= m
		h ^= h >> r
	}

	return h
}
