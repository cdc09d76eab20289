package cache

// Deleter is invoked exactly once per entry, after the entry has dropped
// to zero references, with the key and value it was inserted with.
type Deleter func(key []byte, value any)

// entry is a cache-resident (or recently-detached) mapping. Entries are
// kept in one of two intrusive doubly-linked lists -- the LRU list (held
// only by the cache, refs == 1) or the in-use list (refs >= 2, pinned by
// at least one outstanding handle) -- and never both. The hash table holds
// a pointer to an entry only while inCache is true.
type entry struct {
	key     []byte
	keyHash uint32
	value   any
	deleter Deleter
	charge  uint64

	refs    uint32
	inCache bool

	next, prev *entry // intrusive list links; nil when not linked
	nextHash   *entry // hash bucket chain
}

// Handle is an opaque, externally visible token identifying one
// outstanding pin on a cached entry. It is only valid against the Cache
// that produced it, and only until the matching Release.
type Handle struct {
	e *entry
}

// list is a sentinel (dummy head) for one of the two circular doubly
// linked lists a shard maintains. list.next is the oldest entry, list.prev
// is the newest.
type list struct {
	sentinel entry
}

func newList() *list {
	l := &list{}
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
	return l
}

func (l *list) empty() bool {
	return l.sentinel.next == &l.sentinel
}

func (l *list) oldest() *entry {
	return l.sentinel.next
}

func listRemove(e *entry) {
	e.next.prev = e.prev
	e.prev.next = e.next
	e.next, e.prev = nil, nil
}

// appendNewest links e as the newest member of l (just before the
// sentinel, so l.sentinel.prev == e after this call).
func (l *list) appendNewest(e *entry) {
	e.next = &l.sentinel
	e.prev = l.sentinel.prev
	e.prev.next = e
	e.next.prev = e
}
