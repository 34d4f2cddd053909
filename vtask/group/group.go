// Package group implements task groups and barrier fencing:
// a group wraps a run-queue and lets callers append tasks; a barrier
// task, once reached by the scheduler, must finish before any task
// appended after it becomes dispatchable.
package group

import (
	"sync"

	"github.com/raleighsl/fs/vtask"
)

// Group holds tasks appended after an outstanding barrier out of the
// underlying run-queue entirely, releasing them into it only once the
// barrier task itself runs, so Fetch on the wrapped RQ never surfaces
// them early.
type Group struct {
	mu         sync.Mutex
	rq         vtask.RunQueue
	barrierSet bool
	pending    []*vtask.VTask
}

// New wraps rq (any vtask.RunQueue: fifo/roundrobin/fair) with barrier
// fencing.
func New(rq vtask.RunQueue) *Group {
	return &Group{rq: rq}
}

// Append admits a new leaf task, honoring any outstanding barrier.
func (g *Group) Append(priority uint8, fn vtask.Func) *vtask.VTask {
	t := vtask.NewTask(priority, fn, nil)
	g.admit(t)
	return t
}

// AppendBarrier admits a barrier task: every task appended before it
// runs normally; every task appended after it is held until the barrier
// task itself executes, at which point they are released into the
// underlying run-queue in append order.
func (g *Group) AppendBarrier() *vtask.VTask {
	g.mu.Lock()
	g.barrierSet = true
	g.mu.Unlock()

	barrier := vtask.NewTask(255, func(t *vtask.VTask) {
		g.mu.Lock()
		released := g.pending
		g.pending = nil
		g.barrierSet = false
		g.mu.Unlock()
		for _, p := range released {
			g.rq.Push(p)
		}
	}, nil)
	barrier.Barrier = true
	g.rq.Push(barrier)
	return barrier
}

func (g *Group) admit(t *vtask.VTask) {
	g.mu.Lock()
	if g.barrierSet {
		g.pending = append(g.pending, t)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	g.rq.Push(t)
}

// RQ exposes the underlying run-queue, e.g. to wrap in a vtask.NewRQ
// for a parent scheduler to descend into.
func (g *Group) RQ() vtask.RunQueue { return g.rq }
