package cache

import (
	"sync"
	"sync/atomic"

	"github.com/blockcache/lru/internal/invariant"
)

// lruShard is a single independently-locked partition of a Cache: a hash
// table plus the two intrusive lists plus the usage/capacity counters, all
// guarded by one mutex. This is a direct generalization of the teacher's
// LRUCache (util/cache.go): LRUHandle -> entry, HandleTable -> handleTable,
// the lru_/in_use_ dummy heads -> lru/inUse *list.
type lruShard struct {
	mu sync.Mutex

	capacity uint64
	usage    uint64

	lru    *list // refs == 1, inCache == true; oldest-first
	inUse  *list // refs >= 2, inCache == true; unordered
	table  *handleTable

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newLRUShard(capacity uint64) *lruShard {
	return &lruShard{
		capacity: capacity,
		lru:      newList(),
		inUse:    newList(),
		table:    newHandleTable(),
	}
}

// ref moves e from the LRU list to the in-use list the moment it gains its
// second reference, then bumps refs. Requires the shard lock held.
func (s *lruShard) ref(e *entry) {
	if e.refs == 1 && e.inCache {
		listRemove(e)
		s.inUse.appendNewest(e)
	}
	e.refs++
}

// unref drops e's refcount. At zero it runs the deleter's preconditions
// check and returns e so the caller can invoke the deleter outside the
// lock. At one, with e still cached, it demotes e to the LRU list -- it is
// no longer pinned by any external handle. Requires the shard lock held.
// Returns the entry to delete (refs hit zero) or nil.
func (s *lruShard) unref(e *entry) *entry {
	invariant.Check(e.refs > 0, "unref on zero-ref entry")
	e.refs--
	if e.refs == 0 {
		invariant.Check(!e.inCache, "unref dropped a still-cached entry to zero")
		return e
	}
	if e.inCache && e.refs == 1 {
		listRemove(e)
		s.lru.appendNewest(e)
	}
	return nil
}

// pendingDeletes accumulates entries whose deleter must run once the shard
// lock has been released, per the "collect under lock, run after" rule in
// spec.md section 5.
type pendingDeletes []*entry

func (p *pendingDeletes) add(e *entry) {
	if e != nil {
		*p = append(*p, e)
	}
}

func (p pendingDeletes) run() {
	for _, e := range p {
		e.deleter(e.key, e.value)
	}
}

// insert installs a new mapping, evicting from the LRU list while usage
// exceeds capacity, and returns a pinned Handle. Requires hash to be the
// caller's HashFn(key, 0).
func (s *lruShard) insert(key []byte, hash uint32, value any, charge uint64, deleter Deleter) *Handle {
	e := &entry{
		key:     append([]byte(nil), key...),
		keyHash: hash,
		value:   value,
		deleter: deleter,
		charge:  charge,
		refs:    1, // for the returned handle
		inCache: false,
	}

	var toDelete pendingDeletes

	s.mu.Lock()
	if s.capacity > 0 {
		e.refs++ // for the cache's own reference
		e.inCache = true
		s.inUse.appendNewest(e)
		s.usage += charge
		toDelete.add(s.finishErase(s.table.insert(e)))
	}
	// If capacity == 0, skip table insertion and list linkage entirely;
	// the entry is returned detached and pinned. Release deletes it.

	for s.usage > s.capacity && !s.lru.empty() {
		old := s.lru.oldest()
		invariant.Check(old.refs == 1, "eviction candidate is pinned")
		removed := s.table.remove(old.key, old.keyHash)
		invariant.Check(removed == old, "eviction candidate missing from table")
		toDelete.add(s.finishErase(removed))
		s.evictions.Add(1)
	}
	s.mu.Unlock()

	toDelete.run()
	return &Handle{e: e}
}

func (s *lruShard) lookup(key []byte, hash uint32) *Handle {
	s.mu.Lock()
	e := s.table.lookup(key, hash)
	if e != nil {
		s.ref(e)
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	s.mu.Unlock()
	if e == nil {
		return nil
	}
	return &Handle{e: e}
}

func (s *lruShard) release(h *Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	deleted := s.unref(h.e)
	s.mu.Unlock()
	if deleted != nil {
		deleted.deleter(deleted.key, deleted.value)
	}
}

// finishErase finishes removing e (already taken out of the hash table,
// or nil if there was nothing to remove) from the shard: unlinks it from
// whichever list it's on, marks it detached, subtracts its charge, and
// drops the cache's own reference. Requires the shard lock held. Returns e
// if its refcount reached zero (the caller must run its deleter outside
// the lock), else nil.
func (s *lruShard) finishErase(e *entry) *entry {
	if e == nil {
		return nil
	}
	invariant.Check(e.inCache, "finishErase on already-detached entry")
	listRemove(e)
	e.inCache = false
	s.usage -= e.charge
	return s.unref(e)
}

func (s *lruShard) erase(key []byte, hash uint32) {
	s.mu.Lock()
	deleted := s.finishErase(s.table.remove(key, hash))
	s.mu.Unlock()
	if deleted != nil {
		deleted.deleter(deleted.key, deleted.value)
	}
}

func (s *lruShard) prune() {
	var toDelete pendingDeletes
	s.mu.Lock()
	for !s.lru.empty() {
		e := s.lru.oldest()
		invariant.Check(e.refs == 1, "prune candidate is pinned")
		toDelete.add(s.finishErase(s.table.remove(e.key, e.keyHash)))
	}
	s.mu.Unlock()
	toDelete.run()
}

func (s *lruShard) totalCharge() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func value(h *Handle) any {
	return h.e.value
}
