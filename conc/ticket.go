// Package conc implements the process-local concurrency primitives:
// a FIFO ticket lock (fetch-and-add ticket, spin-wait on now_serving),
// the per-object read/write/commit semaphore (rwcsem), and a counting
// semaphore/latch, the latter two sharing the same mutex+condvar idiom.
package conc

import "sync/atomic"

// Ticket is a fair (FIFO-among-contenders) spinlock: two counters, each
// in its own 32-bit atomic (they are not packed into one word);
// acquirers fetch-and-add next_ticket and spin until now_serving reaches
// their ticket.
type Ticket struct {
	nowServing atomic.Uint32
	nextTicket atomic.Uint32
}

// Acquire spins until this goroutine's ticket is being served.
func (t *Ticket) Acquire() {
	my := t.nextTicket.Add(1) - 1
	for t.nowServing.Load() != my {
		// cpu_relax() equivalent: yield the scheduler briefly.
		procYield()
	}
}

// Release serves the next ticket.
func (t *Ticket) Release() {
	t.nowServing.Add(1)
}
