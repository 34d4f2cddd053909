package objects

import (
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
)

// flowDefaultCapacity bounds the total buffered bytes a flow will hold
// before INSERT starts failing with NO_MEMORY.
const flowDefaultCapacity = 1 << 20

// flowState is a single-ended FIFO of byte chunks, reusing dequePage's
// bucket-backed storage.
type flowState struct {
	pages    []*dequePage
	pageOf   map[uint64]int
	live     []uint64
	nextBack uint64

	bufferedBytes int
	capacity      int
}

func newFlowState() *flowState {
	return &flowState{
		pageOf:   map[uint64]int{},
		nextBack: 1,
		capacity: flowDefaultCapacity,
	}
}

func (s *flowState) asDequeState() *dequeState {
	// dequeState's push-back/pop-front helpers operate on the same
	// shape; borrow them via a lightweight adapter rather than
	// duplicating the bucket-page management logic.
	return &dequeState{pages: s.pages, pageOf: s.pageOf, live: s.live, nextBack: s.nextBack}
}

func (s *flowState) sync(d *dequeState) {
	s.pages = d.pages
	s.pageOf = d.pageOf
	s.live = d.live
	s.nextBack = d.nextBack
}

// Flow implements a bounded, credit-based byte-flow object: a producer
// INSERTs chunks (failing NO_MEMORY once the byte ceiling is hit), a
// consumer REMOVEs them FIFO (DATA_NO_ITEMS once drained), and QUERY
// peeks the oldest chunk without consuming it or reports the
// currently-available credit.
type Flow struct{}

func NewFlow() *Flow { return &Flow{} }

func (Flow) TypeName() string { return "flow" }

func (Flow) Create(o *object.Object) errs.Errno {
	o.SetState(newFlowState())
	return errs.None
}

func (Flow) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(newFlowState())
	}
	return errs.None
}

func (Flow) Close(o *object.Object) errs.Errno  { return errs.None }
func (Flow) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (Flow) Unlink(o *object.Object) errs.Errno { return errs.None }

func (Flow) state(o *object.Object) *flowState { return o.State().(*flowState) }

const (
	flowQueryPeek   = byte(0)
	flowQueryCredit = byte(1)
)

// Query handles peek (return the oldest chunk without consuming it) and
// credit (remaining byte capacity).
func (f Flow) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := f.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	switch req[0] {
	case flowQueryPeek:
		if len(st.live) == 0 {
			return nil, errs.DataNoItems
		}
		front := st.live[0]
		v, _ := st.pages[st.pageOf[front]].b.Search(dequeKeyBytes(front))
		return v, errs.None
	case flowQueryCredit:
		buf := make([]byte, 8)
		remaining := uint64(st.capacity - st.bufferedBytes)
		for i := 0; i < 8; i++ {
			buf[i] = byte(remaining >> (8 * i))
		}
		return buf, errs.None
	default:
		return nil, errs.NotImplemented
	}
}

// Insert pushes a chunk onto the back of the flow, failing NO_MEMORY if
// it would exceed the byte-credit ceiling.
func (f Flow) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := f.state(o)
	if st.bufferedBytes+len(req) > st.capacity {
		return nil, errs.NoMemory
	}

	d := st.asDequeState()
	payload := append([]byte(nil), req...)
	seq := d.nextBack
	d.nextBack++
	d.insert(seq, payload)
	d.live = append(d.live, seq)
	st.sync(d)
	st.bufferedBytes += len(payload)

	if t != nil {
		t.Add(o.OID, txn.Atom{Label: "flow:insert", Undo: func() {
			st.removeSeq(seq, len(payload))
		}})
	}
	return nil, errs.None
}

func (st *flowState) removeSeq(seq uint64, size int) {
	d := st.asDequeState()
	d.removeKey(seq)
	for i, k := range d.live {
		if k == seq {
			d.live = append(d.live[:i], d.live[i+1:]...)
			break
		}
	}
	st.sync(d)
	st.bufferedBytes -= size
}

func (f Flow) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}

// Remove pops the oldest chunk FIFO, failing DATA_NO_ITEMS once drained.
func (f Flow) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := f.state(o)
	if len(st.live) == 0 {
		return nil, errs.DataNoItems
	}
	seq := st.live[0]
	d := st.asDequeState()
	value, _ := d.removeKey(seq)
	d.live = d.live[1:]
	st.sync(d)
	st.bufferedBytes -= len(value)

	if t != nil {
		t.Add(o.OID, txn.Atom{Label: "flow:remove", Undo: func() {
			dd := st.asDequeState()
			dd.insert(seq, value)
			dd.live = append([]uint64{seq}, dd.live...)
			st.sync(dd)
			st.bufferedBytes += len(value)
		}})
	}
	return value, errs.None
}

func (f Flow) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}
