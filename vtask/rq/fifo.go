// Package rq implements the three run-queue policies: FIFO,
// round-robin, and fair (vtime-weighted).
package rq

import (
	"container/list"

	"github.com/raleighsl/fs/vtask"
)

// FIFO is the simplest policy: a deque of children, fetch pops the head.
// Children re-added after a blocking wait (Requeue, as opposed to a
// brand-new Push) go to a secondary pending set ordered by seqid and are
// drained ahead of the main deque on the next Fetch.
type FIFO struct {
	deque   *list.List // of *vtask.VTask, normal arrivals
	pending []*vtask.VTask
}

func NewFIFO() *FIFO {
	return &FIFO{deque: list.New()}
}

func (q *FIFO) Push(t *vtask.VTask) {
	q.deque.PushBack(t)
}

// Requeue re-admits a task that was popped out for a blocking wait and
// is now ready again; it is drained ahead of ordinary arrivals, ordered
// by seqid so earlier-blocked tasks resume first.
func (q *FIFO) Requeue(t *vtask.VTask) {
	i := 0
	for ; i < len(q.pending); i++ {
		if q.pending[i].SeqID > t.SeqID {
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = t
}

func (q *FIFO) Fetch() *vtask.VTask {
	if len(q.pending) > 0 {
		t := q.pending[0]
		q.pending = q.pending[1:]
		return t
	}
	e := q.deque.Front()
	if e == nil {
		return nil
	}
	q.deque.Remove(e)
	return e.Value.(*vtask.VTask)
}

func (q *FIFO) Remove(t *vtask.VTask) bool {
	for e := q.deque.Front(); e != nil; e = e.Next() {
		if e.Value.(*vtask.VTask) == t {
			q.deque.Remove(e)
			return true
		}
	}
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (q *FIFO) Cancel() {
	for e := q.deque.Front(); e != nil; e = e.Next() {
		e.Value.(*vtask.VTask).Cancel = true
	}
	for _, p := range q.pending {
		p.Cancel = true
	}
}
