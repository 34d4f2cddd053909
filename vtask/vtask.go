// Package vtask implements the virtual-task scheduling core:
// a vtask is either a leaf TASK (a function to run) or a recursive RQ
// (run-queue) node; Exec descends through nested RQs until it reaches a
// runnable task. A tagged struct with an explicit RunQueue interface;
// cooperative suspension is an explicit return value, never hidden
// goroutine-as-coroutine magic, so the scheduler's fairness accounting
// sees every suspension point.
package vtask

import "sync/atomic"

// Kind distinguishes a leaf task from a recursive run-queue node.
type Kind int

const (
	KindTask Kind = iota
	KindRQ
)

// Func is the unit of work a leaf VTask executes.
type Func func(t *VTask)

// RunQueue is the scheduling policy a KindRQ vtask descends into. Each
// concrete policy (fifo/roundrobin/fair, package vtask/rq) owns the
// ordering of its children; VTask itself only knows how to hold one.
type RunQueue interface {
	// Push admits a newly created child.
	Push(t *VTask)
	// Fetch returns the next child to descend into,
	// or nil if the run-queue has nothing runnable right now.
	Fetch() *VTask
	// Remove excises a specific child (e.g. on cancellation), reporting
	// whether it was present.
	Remove(t *VTask) bool
	// Cancel marks every child cancelled.
	Cancel()
}

// VTask is one scheduling node: either a leaf task or an RQ descent
// point. vtime/seqid/priority drive the rq policies in package
// vtask/rq; cancel is checked cooperatively before dispatch.
type VTask struct {
	Kind     Kind
	Cancel   bool
	Priority uint8
	VTime    uint64
	SeqID    uint64
	Barrier  bool
	Parent   *VTask

	RQ        RunQueue // non-nil iff Kind == KindRQ
	Run       Func     // non-nil iff Kind == KindTask
	AutoClean Func      // invoked instead of Run when Cancel is set
}

var seqCounter uint64

func nextSeqID() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}

// NewTask builds a leaf vtask.
func NewTask(priority uint8, run Func, autoClean Func) *VTask {
	return &VTask{
		Kind:      KindTask,
		Priority:  priority,
		SeqID:     nextSeqID(),
		Run:       run,
		AutoClean: autoClean,
	}
}

// NewRQ builds an RQ vtask descending into the given policy.
func NewRQ(priority uint8, rq RunQueue) *VTask {
	return &VTask{
		Kind:     KindRQ,
		Priority: priority,
		SeqID:    nextSeqID(),
		RQ:       rq,
	}
}

// Exec is the scheduler's descent loop: walk
// through nested RQs, bumping vtime at each hop, until a leaf task is
// reached; then dispatch it (or its autoclean path, if cancelled),
// remove it from the run-queue it was fetched from, and return.
// Returns false if the descent ran out of runnable children before
// reaching a leaf.
func Exec(root *VTask) bool {
	var parent *VTask
	t := root
	for t != nil {
		t.VTime++
		switch t.Kind {
		case KindRQ:
			parent = t
			t = t.RQ.Fetch()
		case KindTask:
			if t.Cancel {
				if t.AutoClean != nil {
					t.AutoClean(t)
				}
			} else if t.Run != nil {
				t.Run(t)
			}
			if parent != nil {
				parent.RQ.Remove(t)
			}
			return true
		}
	}
	return false
}
