// Package cache implements a concurrent, bounded, weighted LRU cache with
// reference-counted handles. Entries are evicted least-recently-used once
// total charge exceeds capacity; a handle returned by Insert or Lookup
// pins its entry against eviction until Release.
//
// The cache is internally sharded to reduce contention: capacity is split
// evenly (rounded up) across 2^shardBits shards, selected by the high-order
// bits of the key's hash. Prune fans out to every shard; TotalCharge sums
// them; NewId is a single Cache-wide monotonic counter.
package cache

import (
	"sync/atomic"

	"github.com/blockcache/lru/internal/rawhash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Cache maps opaque byte-string keys to opaque values, bounded by a total
// charge (weight), evicting least-recently-used entries once usage exceeds
// capacity. It is safe for concurrent use by multiple goroutines.
type Cache struct {
	shards []*lruShard
	mask   uint32 // len(shards)-1, shards is always a power of two

	lastID atomic.Uint64

	logger zerolog.Logger
}

// NewLRUCache constructs a Cache with the given total capacity (charge
// budget). A capacity of zero is legal: the cache never retains entries
// past their last Release, acting as a pure allocate+deleter pump.
func NewLRUCache(capacity uint64, opts ...Option) *Cache {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	numShards := uint32(1) << uint(cfg.shardBits)
	perShard := (capacity + uint64(numShards-1)) / uint64(numShards)

	c := &Cache{
		shards: make([]*lruShard, numShards),
		mask:   numShards - 1,
		logger: cfg.logger,
	}
	for i := range c.shards {
		c.shards[i] = newLRUShard(perShard)
	}
	return c
}

func (c *Cache) hash(key []byte) uint32 {
	return rawhash.Hash32(key, 0)
}

func (c *Cache) shardFor(hash uint32) *lruShard {
	// High-order bits select the shard, matching the teacher's
	// `hash >> (32 - numShardBits)` so sharding and within-shard bucket
	// selection (which uses the low bits) draw from disjoint bit ranges.
	shift := 32 - popcount(c.mask+1)
	return c.shards[(hash>>uint(shift))&c.mask]
}

func popcount(pow2 uint32) int {
	n := 0
	for pow2 > 1 {
		pow2 >>= 1
		n++
	}
	return n
}

// Insert adds a mapping from key to value, charged against the cache's
// capacity. deleter is invoked exactly once, with key and value, once the
// entry is both evicted/erased and fully unpinned. The returned Handle is
// pinned; the caller must Release it when done.
func (c *Cache) Insert(key []byte, value any, charge uint64, deleter Deleter) *Handle {
	hash := c.hash(key)
	return c.shardFor(hash).insert(key, hash, value, charge, deleter)
}

// Lookup returns a pinned Handle for key, or nil if the cache has no
// mapping for it.
func (c *Cache) Lookup(key []byte) *Handle {
	hash := c.hash(key)
	return c.shardFor(hash).lookup(key, hash)
}

// Release releases a mapping previously returned by Insert or Lookup. h
// must not have been released already, and must have come from this Cache.
// Release(nil) is a no-op.
func (c *Cache) Release(h *Handle) {
	if h == nil {
		return
	}
	c.shardFor(h.e.keyHash).release(h)
}

// Value returns the value encapsulated in h.
func (c *Cache) Value(h *Handle) any {
	return value(h)
}

// Erase removes key's mapping from the cache, if present. The underlying
// entry is kept alive until every outstanding handle to it is released.
func (c *Cache) Erase(key []byte) {
	hash := c.hash(key)
	c.shardFor(hash).erase(key, hash)
}

// NewId returns a new, strictly monotonic, never-repeating id, usable by
// callers sharing a Cache to partition the key space.
func (c *Cache) NewId() uint64 {
	return c.lastID.Add(1)
}

// Prune removes every entry that is not currently pinned by an outstanding
// handle.
func (c *Cache) Prune() {
	before := c.TotalCharge()
	for _, s := range c.shards {
		s.prune()
	}
	c.logger.Debug().
		Uint64("charge_before", before).
		Uint64("charge_after", c.TotalCharge()).
		Msg("cache prune")
}

// TotalCharge returns the combined charge of every entry currently
// resident in the cache.
func (c *Cache) TotalCharge() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.totalCharge()
	}
	return total
}

// Describe and Collect implement prometheus.Collector, exposing usage,
// capacity, hits, misses, and evictions summed across shards. Hits, misses,
// and evictions are read with atomic loads; usage is read through each
// shard's totalCharge, which briefly takes that shard's lock.
var (
	usageDesc = prometheus.NewDesc("blockcache_lru_usage_bytes", "Combined charge of resident entries.", nil, nil)
	capDesc   = prometheus.NewDesc("blockcache_lru_capacity_bytes", "Configured capacity (sum of shard capacities).", nil, nil)
	hitDesc   = prometheus.NewDesc("blockcache_lru_lookup_hits_total", "Lookups that found a resident entry.", nil, nil)
	missDesc  = prometheus.NewDesc("blockcache_lru_lookup_misses_total", "Lookups that found no entry.", nil, nil)
	evictDesc = prometheus.NewDesc("blockcache_lru_evictions_total", "Entries evicted due to overflow.", nil, nil)
)

func (c *Cache) Describe(ch chan<- *prometheus.Desc) {
	ch <- usageDesc
	ch <- capDesc
	ch <- hitDesc
	ch <- missDesc
	ch <- evictDesc
}

func (c *Cache) Collect(ch chan<- prometheus.Metric) {
	var usage, capacity, hits, misses, evictions uint64
	for _, s := range c.shards {
		usage += s.totalCharge()
		capacity += s.capacity
		hits += s.hits.Load()
		misses += s.misses.Load()
		evictions += s.evictions.Load()
	}
	ch <- prometheus.MustNewConstMetric(usageDesc, prometheus.GaugeValue, float64(usage))
	ch <- prometheus.MustNewConstMetric(capDesc, prometheus.GaugeValue, float64(capacity))
	ch <- prometheus.MustNewConstMetric(hitDesc, prometheus.CounterValue, float64(hits))
	ch <- prometheus.MustNewConstMetric(missDesc, prometheus.CounterValue, float64(misses))
	ch <- prometheus.MustNewConstMetric(evictDesc, prometheus.CounterValue, float64(evictions))
}
