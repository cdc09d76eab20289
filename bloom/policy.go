// Package bloom implements a Bloom filter builder and matcher: a filter
// policy that encodes a set of keys into a compact byte array and answers
// probabilistic membership queries against it with no false negatives.
//
// Filter and matcher are pure functions of their inputs; there is no shared
// state, so a single built filter may be read from many goroutines.
package bloom

import "github.com/blockcache/lru/internal/rawhash"

// bloomSeed seeds the base hash used to derive a key's k taps. Fixed, so
// filter construction is deterministic across runs and platforms.
const bloomSeed = uint32(0xbc9f1d34)

// maxK is the upper clamp on derived taps; a trailing byte greater than
// this is treated as a forward-compatible encoding this matcher doesn't
// understand, and KeyMayMatch degrades to a pass-through "true".
const maxK = 30

// Policy builds and matches Bloom filters at a fixed bits-per-key density.
type Policy struct {
	bitsPerKey int
	k          int
}

// NewPolicy returns a Policy with the given bits-per-key density. k (the
// number of hash taps per key) is derived as round(bitsPerKey * ln2),
// clamped to [1, 30].
func NewPolicy(bitsPerKey int) *Policy {
	k := int(float64(bitsPerKey)*0.69314718055994530942 + 0.5)
	if k < 1 {
		k = 1
	}
	if k > maxK {
		k = maxK
	}
	return &Policy{bitsPerKey: bitsPerKey, k: k}
}

// Name returns a stable identifier suitable for tagging a persisted filter
// with the policy that produced it.
func (p *Policy) Name() string {
	return "blockcache.BuiltinBloomFilter"
}

// CreateFilter encodes keys into a filter byte array per the wire format:
// a little-endian-per-byte bit array followed by a single trailing byte
// holding k.
func (p *Policy) CreateFilter(keys [][]byte) []byte {
	n := len(keys)

	bits := n * p.bitsPerKey
	if bits < 64 {
		bits = 64
	}
	nBytes := (bits + 7) / 8
	bits = nBytes * 8

	filter := make([]byte, nBytes+1)
	filter[nBytes] = byte(p.k)

	for _, key := range keys {
		h := rawhash.Hash32(key, bloomSeed)
		delta := (h >> 17) | (h << 15)
		for i := 0; i < p.k; i++ {
			pos := h % uint32(bits)
			filter[pos/8] |= 1 << (pos % 8)
			h += delta
		}
	}
	return filter
}

// keyMayMatch reports whether key may be a member of the set encoded into
// filter. It never returns false for a key actually passed to CreateFilter.
func keyMayMatch(key, filter []byte) bool {
	l := len(filter)
	if l < 2 {
		return false
	}

	nBytes := l - 1
	bits := uint32(nBytes * 8)
	k := int(filter[nBytes])
	if k > maxK {
		// Forward compatibility: a reserved encoding this matcher doesn't
		// understand is treated as a pass-through filter.
		return true
	}

	h := rawhash.Hash32(key, bloomSeed)
	delta := (h >> 17) | (h << 15)
	for i := 0; i < k; i++ {
		pos := h % bits
		if filter[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// KeyMayMatch reports whether key may be a member of the set encoded into
// filter. k travels with the filter itself (its trailing byte), not with
// the Policy, so this method needs no state from p -- it exists on Policy
// because that's the shape callers consuming FilterPolicy through an
// interface expect.
func (p *Policy) KeyMayMatch(key, filter []byte) bool {
	return keyMayMatch(key, filter)
}
