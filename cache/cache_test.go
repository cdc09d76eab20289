package cache

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The scenarios below are the Go-idiomatic, testify-based equivalent of
// original_source/storage/lru_cache_test.cc's CacheTest fixture: numeric
// keys/values are still encoded as little-endian 4-byte (key) / opaque int
// (value) pairs so the deleter-tracking assertions read the same way.

func encodeKey(k int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(k))
	return b
}

type cacheFixture struct {
	t              *testing.T
	cache          *Cache
	deletedKeys    []int
	deletedValues  []int
}

func newFixture(t *testing.T, capacity uint64) *cacheFixture {
	return &cacheFixture{t: t, cache: NewLRUCache(capacity)}
}

func (f *cacheFixture) deleter() Deleter {
	return func(key []byte, value any) {
		require.Len(f.t, key, 4)
		f.deletedKeys = append(f.deletedKeys, int(binary.LittleEndian.Uint32(key)))
		f.deletedValues = append(f.deletedValues, value.(int))
	}
}

func (f *cacheFixture) insert(key, value int, charge uint64) {
	f.cache.Release(f.cache.Insert(encodeKey(key), value, charge, f.deleter()))
}

func (f *cacheFixture) insertHandle(key, value int, charge uint64) *Handle {
	return f.cache.Insert(encodeKey(key), value, charge, f.deleter())
}

func (f *cacheFixture) lookup(key int) int {
	h := f.cache.Lookup(encodeKey(key))
	if h == nil {
		return -1
	}
	defer f.cache.Release(h)
	return f.cache.Value(h).(int)
}

func (f *cacheFixture) erase(key int) {
	f.cache.Erase(encodeKey(key))
}

func TestHitAndMiss(t *testing.T) {
	f := newFixture(t, 1000)
	assert.Equal(t, -1, f.lookup(100))

	f.insert(100, 101, 1)
	assert.Equal(t, 101, f.lookup(100))
	assert.Equal(t, -1, f.lookup(200))
	assert.Equal(t, -1, f.lookup(300))

	f.insert(200, 201, 1)
	assert.Equal(t, 101, f.lookup(100))
	assert.Equal(t, 201, f.lookup(200))
	assert.Equal(t, -1, f.lookup(300))

	f.insert(100, 102, 1)
	assert.Equal(t, 102, f.lookup(100))
	assert.Equal(t, 201, f.lookup(200))
	assert.Equal(t, -1, f.lookup(300))

	require.Len(t, f.deletedKeys, 1)
	assert.Equal(t, 100, f.deletedKeys[0])
	assert.Equal(t, 101, f.deletedValues[0])
}

func TestErase(t *testing.T) {
	f := newFixture(t, 1000)
	f.erase(200)
	assert.Empty(t, f.deletedKeys)

	f.insert(100, 101, 1)
	f.insert(200, 201, 1)
	f.erase(100)
	assert.Equal(t, -1, f.lookup(100))
	assert.Equal(t, 201, f.lookup(200))
	require.Len(t, f.deletedKeys, 1)
	assert.Equal(t, 100, f.deletedKeys[0])
	assert.Equal(t, 101, f.deletedValues[0])

	f.erase(100)
	assert.Equal(t, -1, f.lookup(100))
	assert.Equal(t, 201, f.lookup(200))
	assert.Len(t, f.deletedKeys, 1)
}

func TestEntriesArePinned(t *testing.T) {
	f := newFixture(t, 1000)
	f.insert(100, 101, 1)
	h1 := f.cache.Lookup(encodeKey(100))
	require.NotNil(t, h1)
	assert.Equal(t, 101, f.cache.Value(h1).(int))

	f.insert(100, 102, 1)
	h2 := f.cache.Lookup(encodeKey(100))
	require.NotNil(t, h2)
	assert.Equal(t, 102, f.cache.Value(h2).(int))
	assert.Empty(t, f.deletedKeys)

	f.cache.Release(h1)
	require.Len(t, f.deletedKeys, 1)
	assert.Equal(t, 100, f.deletedKeys[0])
	assert.Equal(t, 101, f.deletedValues[0])

	f.erase(100)
	assert.Equal(t, -1, f.lookup(100))
	assert.Len(t, f.deletedKeys, 1)

	f.cache.Release(h2)
	require.Len(t, f.deletedKeys, 2)
	assert.Equal(t, 100, f.deletedKeys[1])
	assert.Equal(t, 102, f.deletedValues[1])
}

func TestEvictionPolicyKeepsHotAndPinnedEntries(t *testing.T) {
	const capacity = 1000
	f := newFixture(t, capacity)
	f.insert(100, 101, 1)
	f.insert(200, 201, 1)
	f.insert(300, 301, 1)
	h := f.cache.Lookup(encodeKey(300))
	require.NotNil(t, h)

	for i := 0; i < capacity+100; i++ {
		f.insert(1000+i, 2000+i, 1)
		assert.Equal(t, 2000+i, f.lookup(1000+i))
		assert.Equal(t, 101, f.lookup(100)) // keeps 100 hot
	}
	assert.Equal(t, 101, f.lookup(100))
	assert.Equal(t, -1, f.lookup(200)) // evicted: never touched again
	assert.Equal(t, 301, f.lookup(300)) // kept alive by the outstanding handle

	f.cache.Release(h)
}

func TestUseExceedsCacheSize(t *testing.T) {
	const capacity = 1000
	f := newFixture(t, capacity)

	var handles []*Handle
	for i := 0; i < capacity+100; i++ {
		handles = append(handles, f.insertHandle(1000+i, 2000+i, 1))
	}

	for i := range handles {
		assert.Equal(t, 2000+i, f.lookup(1000+i))
	}

	for _, h := range handles {
		f.cache.Release(h)
	}
}

func TestHeavyEntriesStayNearCapacity(t *testing.T) {
	const capacity = 1000
	const light, heavy = 1, 10
	f := newFixture(t, capacity)

	added := 0
	index := 0
	for added < 2*capacity {
		weight := uint64(heavy)
		if index&1 != 0 {
			weight = light
		}
		f.insert(index, 1000+index, weight)
		added += int(weight)
		index++
	}

	cachedWeight := 0
	for i := 0; i < index; i++ {
		weight := heavy
		if i&1 != 0 {
			weight = light
		}
		r := f.lookup(i)
		if r >= 0 {
			cachedWeight += weight
			assert.Equal(t, 1000+i, r)
		}
	}
	assert.LessOrEqual(t, cachedWeight, capacity+capacity/10)
}

func TestNewIdIsMonotonicAndUnique(t *testing.T) {
	f := newFixture(t, 1000)
	a := f.cache.NewId()
	b := f.cache.NewId()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}

func TestPruneLeavesPinnedEntriesAlone(t *testing.T) {
	f := newFixture(t, 1000)
	f.insert(1, 100, 1)
	f.insert(2, 200, 1)

	h := f.cache.Lookup(encodeKey(1))
	require.NotNil(t, h)
	f.cache.Prune()
	f.cache.Release(h)

	assert.Equal(t, 100, f.lookup(1))
	assert.Equal(t, -1, f.lookup(2))
}

func TestZeroCapacityActsAsAllocatorDeleterPump(t *testing.T) {
	f := newFixture(t, 0)
	h := f.insertHandle(1, 100, 1)
	require.NotNil(t, h)
	assert.Equal(t, 100, f.cache.Value(h).(int))
	assert.Empty(t, f.deletedKeys)
	// never entered the table: a concurrent Lookup can't find it
	assert.Equal(t, -1, f.lookup(1))

	f.cache.Release(h)
	require.Len(t, f.deletedKeys, 1)
	assert.Equal(t, 1, f.deletedKeys[0])
}

func TestZeroChargeEntryIsLegalAndEvictableUnderPrune(t *testing.T) {
	f := newFixture(t, 10)
	f.insert(1, 100, 0)
	assert.Equal(t, uint64(0), f.cache.TotalCharge())
	assert.Equal(t, 100, f.lookup(1))

	f.cache.Prune()
	assert.Equal(t, -1, f.lookup(1))
}

func TestTotalChargeTracksResidentEntries(t *testing.T) {
	const capacity = 1000
	f := newFixture(t, capacity)
	for i := 0; i < 50; i++ {
		f.insert(i, i, 1)
	}
	assert.LessOrEqual(t, f.cache.TotalCharge(), uint64(capacity))
	assert.Equal(t, uint64(50), f.cache.TotalCharge())
}

func TestReleaseOfNilHandleIsNoOp(t *testing.T) {
	f := newFixture(t, 1000)
	assert.NotPanics(t, func() { f.cache.Release(nil) })
}

func TestConcurrentInsertLookupRelease(t *testing.T) {
	f := newFixture(t, 4096)
	const workers = 32
	const perWorker = 500

	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < perWorker; i++ {
				key := w*perWorker + i
				h := f.cache.Insert(encodeKey(key), key, 1, func([]byte, any) {})
				got := f.cache.Value(h)
				assert.Equal(t, key, got)
				if lh := f.cache.Lookup(encodeKey(key)); assert.NotNil(t, lh) {
					assert.Equal(t, key, f.cache.Value(lh))
					f.cache.Release(lh)
				}
				f.cache.Release(h)
			}
		}(w)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
}
