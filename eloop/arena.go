package eloop

import "github.com/raleighsl/fs/rcfg"

// Arena is a per-core memory pool. Blocks are bucketed by size class between BlockMin and
// BlockMax (rcfg.Config.MMPoolBlockMin/Max), each class backed by a
// free-list of reusable byte slices so steady-state task dispatch does
// not allocate.
type Arena struct {
	blockMin, blockMax int
	pageSize           int

	classes []arenaClass
	used    int64
}

type arenaClass struct {
	size int
	free [][]byte
}

// NewArena builds an arena sized per conf, with one size class per
// power-of-two step from BlockMin to BlockMax.
func NewArena(conf *rcfg.Config) *Arena {
	a := &Arena{blockMin: conf.MMPoolBlockMin, blockMax: conf.MMPoolBlockMax, pageSize: conf.MMPoolPageSize}
	for sz := a.blockMin; sz <= a.blockMax; sz *= 2 {
		a.classes = append(a.classes, arenaClass{size: sz})
	}
	return a
}

func (a *Arena) classFor(size int) int {
	for i, c := range a.classes {
		if c.size >= size {
			return i
		}
	}
	return -1
}

// Alloc returns a zeroed byte slice of at least size bytes, reusing a
// freed block of the same size class when one is available.
func (a *Arena) Alloc(size int) []byte {
	idx := a.classFor(size)
	if idx < 0 {
		a.used += int64(size)
		return make([]byte, size)
	}
	c := &a.classes[idx]
	if n := len(c.free); n > 0 {
		b := c.free[n-1]
		c.free = c.free[:n-1]
		for i := range b {
			b[i] = 0
		}
		return b[:size]
	}
	a.used += int64(c.size)
	return make([]byte, c.size)[:size]
}

// Free returns b to its size class's free-list for reuse.
func (a *Arena) Free(b []byte) {
	idx := a.classFor(cap(b))
	if idx < 0 {
		return
	}
	c := &a.classes[idx]
	c.free = append(c.free, b[:cap(b)])
}

// Used reports the total bytes this arena has allocated from the OS
// (not currently-in-use bytes, matching device.Device.Used's "high
// water mark" semantics).
func (a *Arena) Used() int64 { return a.used }
