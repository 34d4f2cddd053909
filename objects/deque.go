package objects

import (
	"encoding/binary"

	"github.com/raleighsl/fs/bucket"
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/mapiter"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
)

const (
	dequePageSize = 8192
	dequeMagic    = uint16(0xDE51)
)

// dequePage is one fixed-size bucket page backing a slice of the
// deque's live entries.
type dequePage struct {
	buf []byte
	b   *bucket.Bucket
}

func newDequePage() *dequePage {
	buf := make([]byte, dequePageSize)
	return &dequePage{buf: buf, b: bucket.Create(buf, dequeMagic, 0)}
}

// dequeState keeps bucket pages as the durable backing store and a
// small ascending live-key index in memory for O(1) front/back access
// (a bucket page only supports forward fetch-first/fetch-next and
// exact-key search, not a direct "largest key" query).
type dequeState struct {
	pages  []*dequePage
	pageOf map[uint64]int

	live []uint64 // ascending: live[0] is the front key, live[len-1] the back key

	nextFront uint64
	nextBack  uint64
}

func newDequeState() *dequeState {
	return &dequeState{
		pageOf:    map[uint64]int{},
		nextFront: 1 << 32,
		nextBack:  1 << 32,
	}
}

func dequeKeyBytes(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func (s *dequeState) pageWithSpace(valLen int) *dequePage {
	if n := len(s.pages); n > 0 {
		last := s.pages[n-1]
		if last.b.HasSpace(8, valLen) {
			return last
		}
	}
	p := newDequePage()
	s.pages = append(s.pages, p)
	return p
}

func (s *dequeState) insert(seq uint64, value []byte) {
	p := s.pageWithSpace(len(value))
	p.b.Append(dequeKeyBytes(seq), value)
	s.pageOf[seq] = len(s.pages) - 1
}

func (s *dequeState) removeKey(seq uint64) ([]byte, bool) {
	idx, ok := s.pageOf[seq]
	if !ok {
		return nil, false
	}
	p := s.pages[idx]
	key := dequeKeyBytes(seq)
	value, found := p.b.Search(key)
	if !found {
		return nil, false
	}
	valueCopy := append([]byte(nil), value...)
	p.b.Remove(key)
	delete(s.pageOf, seq)
	return valueCopy, true
}

// Deque implements push-front/push-back/pop-front/pop-back/peek; DATA_NO_ITEMS
// on pop/peek from empty.
type Deque struct{}

func NewDeque() *Deque { return &Deque{} }

func (Deque) TypeName() string { return "deque" }

func (Deque) Create(o *object.Object) errs.Errno {
	o.SetState(newDequeState())
	return errs.None
}

func (Deque) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(newDequeState())
	}
	return errs.None
}

func (Deque) Close(o *object.Object) errs.Errno  { return errs.None }
func (Deque) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (Deque) Unlink(o *object.Object) errs.Errno { return errs.None }

func (Deque) state(o *object.Object) *dequeState { return o.State().(*dequeState) }

const (
	dequeOpPushFront = byte(0)
	dequeOpPushBack  = byte(1)
	dequeOpPopFront  = byte(2)
	dequeOpPopBack   = byte(3)
	dequeOpPeekFront = byte(4)
	dequeOpPeekBack  = byte(5)
	dequeOpIterate   = byte(6)
)

// Query handles the read-only ops: peek-front/back and full iteration.
func (d Deque) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := d.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	switch req[0] {
	case dequeOpPeekFront:
		if len(st.live) == 0 {
			return nil, errs.DataNoItems
		}
		v, _ := st.pages[st.pageOf[st.live[0]]].b.Search(dequeKeyBytes(st.live[0]))
		return v, errs.None
	case dequeOpPeekBack:
		if len(st.live) == 0 {
			return nil, errs.DataNoItems
		}
		last := st.live[len(st.live)-1]
		v, _ := st.pages[st.pageOf[last]].b.Search(dequeKeyBytes(last))
		return v, errs.None
	case dequeOpIterate:
		return d.iterateAll(st), errs.None
	default:
		return nil, errs.NotImplemented
	}
}

// iterateAll folds every page's sorted bucket contents into one
// front-to-back stream via mapiter.Merger, concatenating
// each value as a length-prefixed blob.
func (d Deque) iterateAll(st *dequeState) []byte {
	var its []mapiter.Iterator
	for _, p := range st.pages {
		it := mapiter.NewBucketIterator(p.b)
		if it.Valid() {
			its = append(its, it)
		}
	}
	if len(its) == 0 {
		return nil
	}
	m := mapiter.NewMerger(mapiter.BytesCmp, false, its...)
	var out []byte
	for m.Valid() {
		out = appendLengthPrefixed(out, m.Value())
		m.Next()
	}
	return out
}

func appendLengthPrefixed(dst, v []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, v...)
}

// Insert handles push-front/push-back: req[0] selects the side, req[1:]
// is the payload to push.
func (d Deque) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := d.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	payload := append([]byte(nil), req[1:]...)

	switch req[0] {
	case dequeOpPushFront:
		st.nextFront--
		seq := st.nextFront
		st.insert(seq, payload)
		st.live = append([]uint64{seq}, st.live...)
		if t != nil {
			t.Add(o.OID, txn.Atom{Label: "deque:pushfront", Undo: func() {
				st.removeKey(seq)
				st.live = st.live[1:]
			}})
		}
		return nil, errs.None
	case dequeOpPushBack:
		seq := st.nextBack
		st.nextBack++
		st.insert(seq, payload)
		st.live = append(st.live, seq)
		if t != nil {
			t.Add(o.OID, txn.Atom{Label: "deque:pushback", Undo: func() {
				st.removeKey(seq)
				st.live = st.live[:len(st.live)-1]
			}})
		}
		return nil, errs.None
	default:
		return nil, errs.NotImplemented
	}
}

// Update is unused for deque; pop is modeled as Remove (it discards an
// item rather than replacing one in place).
func (d Deque) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}

// Remove handles pop-front/pop-back: req[0] selects the side, the
// popped payload is returned as the response.
func (d Deque) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := d.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	if len(st.live) == 0 {
		return nil, errs.DataNoItems
	}

	switch req[0] {
	case dequeOpPopFront:
		seq := st.live[0]
		value, _ := st.removeKey(seq)
		st.live = st.live[1:]
		if t != nil {
			t.Add(o.OID, txn.Atom{Label: "deque:popfront", Undo: func() {
				st.insert(seq, value)
				st.live = append([]uint64{seq}, st.live...)
			}})
		}
		return value, errs.None
	case dequeOpPopBack:
		seq := st.live[len(st.live)-1]
		value, _ := st.removeKey(seq)
		st.live = st.live[:len(st.live)-1]
		if t != nil {
			t.Add(o.OID, txn.Atom{Label: "deque:popback", Undo: func() {
				st.insert(seq, value)
				st.live = append(st.live, seq)
			}})
		}
		return value, errs.None
	default:
		return nil, errs.NotImplemented
	}
}

func (d Deque) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}
