// Package eloop implements the per-core event loop, iopoll engine, and
// cross-core work dispatch: one Context per process, one
// worker per configured core, each pumping its local run-queue between
// drains of its iopoll engine and its inbound cross-core rings.
package eloop

import (
	"errors"
	"sync/atomic"

	"github.com/raleighsl/fs/vtask"
)

// ErrRingFull is returned by Ring.Push when the ring has no free slot.
var ErrRingFull = errors.New("eloop: ring full")

// Ring is a lock-free single-producer/single-consumer ring buffer of
// vtask pointers, used for the (posting-core, target-core) cross-core
// posting rings.
// size must be a power of two (rcfg.Config.Validate enforces this for
// the configured ring sizes).
type Ring struct {
	mask uint64
	buf  []*vtask.VTask

	head uint64 // next slot a consumer will read (Pop)
	tail uint64 // next slot a producer will write (Push)
}

// NewRing allocates a ring of the given power-of-two size.
func NewRing(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("eloop: ring size must be a positive power of two")
	}
	return &Ring{mask: uint64(size - 1), buf: make([]*vtask.VTask, size)}
}

// Push admits t for the single consumer to Pop, failing ErrRingFull if
// the ring is at capacity. Safe for exactly one producer goroutine at a
// time; Pop may run concurrently from a different goroutine.
func (r *Ring) Push(t *vtask.VTask) error {
	head := atomic.LoadUint64(&r.head)
	tail := r.tail
	if tail-head >= uint64(len(r.buf)) {
		return ErrRingFull
	}
	r.buf[tail&r.mask] = t
	atomic.StoreUint64(&r.tail, tail+1)
	return nil
}

// Pop removes and returns the oldest posted task, or nil if the ring is
// empty. Safe for exactly one consumer goroutine.
func (r *Ring) Pop() *vtask.VTask {
	head := r.head
	tail := atomic.LoadUint64(&r.tail)
	if head == tail {
		return nil
	}
	t := r.buf[head&r.mask]
	r.buf[head&r.mask] = nil
	atomic.StoreUint64(&r.head, head+1)
	return t
}

// Len reports an approximate number of queued entries (racy against a
// concurrent producer/consumer, used only for load metrics).
func (r *Ring) Len() int {
	return int(atomic.LoadUint64(&r.tail) - atomic.LoadUint64(&r.head))
}
