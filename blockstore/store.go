// Package blockstore pairs package cache and package bloom the way the
// storage engine this spec was distilled from actually uses them together:
// an SSTable-style block cache keyed by block id, with a CRC32C trailer
// guarding against corruption and a Bloom filter over a table's block ids
// so a reader can skip a cache miss (and the disk read behind it)
// entirely when a key's table clearly doesn't hold it.
//
// Unlike package cache, which treats misuse as a contract violation to be
// debug-asserted, Store is the layer that touches untrusted bytes -- a bad
// checksum is routine, not a bug -- so it is the only library package in
// this module that returns error values.
package blockstore

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/blockcache/lru/bloom"
	"github.com/blockcache/lru/cache"
)

// crcTable is the Castagnoli polynomial table, the CRC32C variant LevelDB
// and its descendants use for block checksums (not the zip/IEEE
// polynomial hash/crc32 uses by default).
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is LevelDB's documented CRC masking constant: storing a raw
// CRC next to data that might itself contain embedded CRCs is fragile, so
// the convention is to always store crc values rotated and offset by this
// delta instead ("masked").
const maskDelta = 0xa282ead8

func maskCRC(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

func unmaskCRC(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// ErrCorrupt is wrapped by Get when a stored block's trailer doesn't
// verify against its data.
var ErrCorrupt = errors.New("blockstore: block failed checksum verification")

// trailerSize is the length in bytes of the masked-CRC32C trailer appended
// after every block's payload.
const trailerSize = 4

// Store wraps a cache.Cache and a bloom.Policy to provide cached,
// checksum-verified block storage plus a block-existence filter, the pair
// of primitives an SSTable-style reader needs.
type Store struct {
	c      *cache.Cache
	policy *bloom.Policy
}

// New constructs a Store backed by a cache.Cache of the given capacity
// (bytes) and a bloom.Policy at the given bits-per-key density.
func New(capacityBytes uint64, bitsPerKey int, opts ...cache.Option) *Store {
	return &Store{
		c:      cache.NewLRUCache(capacityBytes, opts...),
		policy: bloom.NewPolicy(bitsPerKey),
	}
}

// Put caches data under blockID, charged at len(data) bytes, with a
// CRC32C trailer appended so Get can detect corruption. The returned
// handle is pinned; the caller must Release it.
func (s *Store) Put(blockID []byte, data []byte) *cache.Handle {
	stored := make([]byte, len(data)+trailerSize)
	copy(stored, data)
	crc := crc32.Update(0, crcTable, data)
	binary.LittleEndian.PutUint32(stored[len(data):], maskCRC(crc))

	return s.c.Insert(blockID, stored, uint64(len(data)), func([]byte, any) {})
}

// Get returns the cached block for blockID, verifying its CRC32C trailer.
// The returned handle is pinned and must be Released by the caller. A
// cache miss returns (nil, nil, nil); a corrupt block returns a non-nil
// error and releases its own handle before returning.
func (s *Store) Get(blockID []byte) (data []byte, h *cache.Handle, err error) {
	h = s.c.Lookup(blockID)
	if h == nil {
		return nil, nil, nil
	}
	stored := s.c.Value(h).([]byte)
	if len(stored) < trailerSize {
		s.c.Release(h)
		return nil, nil, errors.Wrap(ErrCorrupt, "stored block shorter than trailer")
	}

	payload := stored[:len(stored)-trailerSize]
	want := unmaskCRC(binary.LittleEndian.Uint32(stored[len(payload):]))
	got := crc32.Update(0, crcTable, payload)
	if want != got {
		s.c.Release(h)
		return nil, nil, errors.Wrapf(ErrCorrupt, "block %x: want crc %08x, got %08x", blockID, want, got)
	}
	return payload, h, nil
}

// Release releases a handle returned by Put or Get.
func (s *Store) Release(h *cache.Handle) {
	s.c.Release(h)
}

// Erase removes blockID's cached block, if present.
func (s *Store) Erase(blockID []byte) {
	s.c.Erase(blockID)
}

// BuildFilter encodes blockIDs into a Bloom filter, so a reader can test
// MayContain before ever touching the cache or the disk behind it.
func (s *Store) BuildFilter(blockIDs [][]byte) []byte {
	return s.policy.CreateFilter(blockIDs)
}

// MayContain reports whether blockID may be present in the set encoded
// into filter by a prior BuildFilter call.
func (s *Store) MayContain(filter, blockID []byte) bool {
	return s.policy.KeyMayMatch(blockID, filter)
}

// Cache exposes the underlying cache.Cache, e.g. for registering it as a
// prometheus.Collector or calling Prune/TotalCharge directly.
func (s *Store) Cache() *cache.Cache {
	return s.c
}
