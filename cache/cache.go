// Package cache implements the object cache with pluggable eviction: a
// chained hash table keyed by oid, striped for concurrency, holding
// refcounted entries that a Policy (LRU or 2Q, see policy.go) orders
// for reclaim. Entries stay pinned while refs>0; a separate pass
// reclaims idle entries under pressure.
package cache

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/prometheus/client_golang/prometheus"
)

// Entry is one live cache slot: hash
// chain membership is implicit in the stripe's map, oid identifies the
// object, Value is the cached payload (an *object.Object in practice,
// kept as `any` here so cache has no import-cycle dependency on
// package object), Refs pins it against eviction, and EvictWhenIdle
// marks an entry already Remove()d but still held by a caller.
type Entry struct {
	OID            uint64
	Value          any
	refs           int32
	dead           bool
	evictWhenIdle  bool
}

// Policy orders live entries for reclaim.
// Implementations are not expected to be internally concurrency-safe;
// Cache serializes all policy calls under the owning stripe's lock.
type Policy interface {
	// Insert admits a newly cached entry.
	Insert(e *Entry)
	// Touch records a cache hit on an already-live entry.
	Touch(e *Entry)
	// Forget removes an entry the cache is discarding (oid unlinked,
	// txn rollback of a create, etc.) regardless of recency.
	Forget(e *Entry)
	// Reclaim picks the next victim with refs==0, or nil if none is
	// currently reclaimable.
	Reclaim() *Entry
}

const stripeCount = 16

type stripe struct {
	mu      sync.Mutex
	entries map[uint64]*Entry
	policy  Policy
}

// Cache is the striped, pluggable-eviction object cache.
// Capacity is soft: Reclaim is only ever invoked by the caller
// (typically eloop's idle pass), never implicitly on insert.
type Cache struct {
	capacity int
	stripes  [stripeCount]*stripe
	newPolicy func() Policy

	hits, misses prometheus.Counter
	live         prometheus.Gauge
}

// NewPolicyFunc builds a fresh, empty Policy for one stripe; LRU/NewLRU
// and NewTwoQ (policy.go) both satisfy this shape.
type NewPolicyFunc func() Policy

// New constructs a Cache with the given soft capacity (spread evenly
// across stripes) and eviction policy constructor, registering hit/miss
// counters and a live-entry gauge with reg (pass nil to skip
// registration, e.g. in tests that don't want global registry side
// effects).
func New(capacity int, newPolicy NewPolicyFunc, reg prometheus.Registerer) *Cache {
	c := &Cache{capacity: capacity, newPolicy: newPolicy}
	for i := range c.stripes {
		c.stripes[i] = &stripe{entries: map[uint64]*Entry{}, policy: newPolicy()}
	}
	c.hits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "raleighsl_cache_hits_total", Help: "object cache lookups that found a live entry",
	})
	c.misses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "raleighsl_cache_misses_total", Help: "object cache lookups that found nothing live",
	})
	c.live = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "raleighsl_cache_live_entries", Help: "currently live object cache entries",
	})
	if reg != nil {
		reg.MustRegister(c.hits, c.misses, c.live)
	}
	return c
}

func (c *Cache) stripeFor(oid uint64) *stripe {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(oid >> (8 * i))
	}
	h := xxhash.Checksum64(b[:])
	return c.stripes[h%uint64(stripeCount)]
}

// TryInsert inserts iff oid is not already present, returning the live
// entry either way (the caller's or the existing one; at most one live
// entry per oid exists at any time). The returned entry always has
// refs >= 1 on behalf of the caller.
func (c *Cache) TryInsert(oid uint64, value any) (*Entry, bool) {
	s := c.stripeFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[oid]; ok && !e.dead {
		e.refs++
		return e, false
	}
	e := &Entry{OID: oid, Value: value, refs: 1}
	s.entries[oid] = e
	s.policy.Insert(e)
	c.live.Inc()
	return e, true
}

// Lookup returns a live entry with refs incremented, or nil.
func (c *Cache) Lookup(oid uint64) *Entry {
	s := c.stripeFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[oid]
	if !ok || e.dead {
		c.misses.Inc()
		return nil
	}
	e.refs++
	s.policy.Touch(e)
	c.hits.Inc()
	return e
}

// Release drops one reference; an entry already marked evict_when_idle
// (via Remove) is unlinked and freed once refs reaches zero.
func (c *Cache) Release(e *Entry) {
	s := c.stripeFor(e.OID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs <= 0 && e.evictWhenIdle {
		c.unlink(s, e)
	}
}

// Remove marks the entry dead; actual free awaits refs reaching zero.
func (c *Cache) Remove(oid uint64) {
	s := c.stripeFor(oid)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[oid]
	if !ok || e.dead {
		return
	}
	e.dead = true
	e.evictWhenIdle = true
	if e.refs <= 0 {
		c.unlink(s, e)
	}
}

func (c *Cache) unlink(s *stripe, e *Entry) {
	// A newer entry may have replaced a dead one under the same oid
	// (TryInsert after Remove); only drop the map slot if it is still e.
	if cur, ok := s.entries[e.OID]; ok && cur == e {
		delete(s.entries, e.OID)
	}
	s.policy.Forget(e)
	c.live.Dec()
}

// Reclaim is called when live_count > capacity, or under memory
// pressure: it asks each stripe's policy for a
// victim with refs==0 and unlinks it, until that stripe holds at most
// capacity/stripeCount entries (integer division, so a capacity below
// stripeCount trims every stripe to zero) or has no reclaimable victim
// left.
func (c *Cache) Reclaim() (reclaimed int) {
	for _, s := range c.stripes {
		s.mu.Lock()
		for len(s.entries) > c.capacity/stripeCount {
			victim := s.policy.Reclaim()
			if victim == nil {
				break
			}
			delete(s.entries, victim.OID)
			c.live.Dec()
			reclaimed++
		}
		s.mu.Unlock()
	}
	return reclaimed
}

// Len reports the total live entry count across all stripes (tests/diagnostics).
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.stripes {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
