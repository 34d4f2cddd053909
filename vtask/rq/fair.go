package rq

import "github.com/raleighsl/fs/vtask"

// Fair orders children by vtime (lower vtime fetched first); on each
// fetch the chosen child's vtime advances by its Priority value (0 counts
// as 1), so a child with a smaller Priority value accrues vtime more
// slowly and is picked more often. Kept as a small sorted slice rather than a
// balanced tree, the same "simplicity over raw performance" tradeoff
// avl16 documents for its O(n) height recomputation; run-queue fanout in
// this system is small (object-local task sets), not a hot path at
// scale.
type Fair struct {
	children []*vtask.VTask
}

func NewFair() *Fair {
	return &Fair{}
}

func (q *Fair) Push(t *vtask.VTask) {
	i := 0
	for ; i < len(q.children); i++ {
		if less(t, q.children[i]) {
			break
		}
	}
	q.children = append(q.children, nil)
	copy(q.children[i+1:], q.children[i:])
	q.children[i] = t
}

func less(a, b *vtask.VTask) bool {
	if a.VTime != b.VTime {
		return a.VTime < b.VTime
	}
	return a.SeqID < b.SeqID
}

func (q *Fair) Fetch() *vtask.VTask {
	if len(q.children) == 0 {
		return nil
	}
	t := q.children[0]
	q.children = q.children[1:]

	p := uint64(t.Priority)
	if p == 0 {
		p = 1
	}
	t.VTime += p

	// Re-insert at its new vtime-sorted position, keeping it in the
	// rotation for the next fetch.
	q.Push(t)
	return t
}

func (q *Fair) Remove(t *vtask.VTask) bool {
	for i, c := range q.children {
		if c == t {
			q.children = append(q.children[:i], q.children[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Fair) Cancel() {
	for _, c := range q.children {
		c.Cancel = true
	}
}
