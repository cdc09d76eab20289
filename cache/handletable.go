package cache

import "bytes"

// handleTable is the shard's hash table: chained buckets over a power-of-
// two array, resized up (never down) whenever elems exceeds the bucket
// count -- a load factor of 1.0. Growth rehashes every chained entry in
// place. This mirrors the teacher's HandleTable exactly; the only change
// is expressing key equality with bytes.Equal instead of a Slice wrapper.
type handleTable struct {
	buckets []*entry // length is always a power of two
	elems   uint32
}

func newHandleTable() *handleTable {
	t := &handleTable{}
	t.resize()
	return t
}

func (t *handleTable) lookup(key []byte, hash uint32) *entry {
	return *t.findPointer(key, hash)
}

// insert adds h to the table, returning the prior entry at the same
// (key, hash), or nil if there was none. The caller is responsible for
// finishing removal of any returned prior entry from its list.
func (t *handleTable) insert(h *entry) *entry {
	ptr := t.findPointer(h.key, h.keyHash)
	old := *ptr
	if old == nil {
		h.nextHash = nil
	} else {
		h.nextHash = old.nextHash
	}
	*ptr = h
	if old == nil {
		t.elems++
		if t.elems > uint32(len(t.buckets)) {
			t.resize()
		}
	}
	return old
}

func (t *handleTable) remove(key []byte, hash uint32) *entry {
	ptr := t.findPointer(key, hash)
	result := *ptr
	if result != nil {
		*ptr = result.nextHash
		t.elems--
	}
	return result
}

// findPointer returns a pointer to the slot that holds the entry matching
// (key, hash), or a pointer to the trailing nil slot of its bucket chain
// if there is no such entry.
func (t *handleTable) findPointer(key []byte, hash uint32) **entry {
	ptr := &t.buckets[hash&(uint32(len(t.buckets))-1)]
	for *ptr != nil && ((*ptr).keyHash != hash || !bytes.Equal(key, (*ptr).key)) {
		ptr = &(*ptr).nextHash
	}
	return ptr
}

func (t *handleTable) resize() {
	newLen := uint32(4)
	for newLen < t.elems {
		newLen *= 2
	}
	newBuckets := make([]*entry, newLen)
	var count uint32
	for _, head := range t.buckets {
		h := head
		for h != nil {
			next := h.nextHash
			idx := h.keyHash & (newLen - 1)
			h.nextHash = newBuckets[idx]
			newBuckets[idx] = h
			h = next
			count++
		}
	}
	if count != t.elems {
		panic("cache: handleTable resize lost entries")
	}
	t.buckets = newBuckets
}
