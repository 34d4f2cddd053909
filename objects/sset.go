package objects

import (
	"bytes"
	"encoding/binary"

	"github.com/raleighsl/fs/avl16"
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/mapiter"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
)

const (
	ssetMaxMember = 255
	ssetKeySize   = ssetMaxMember
	ssetValSize   = 2 // actual member length, since keys are zero-padded to ssetKeySize
	ssetBlockSize = 1 << 16
)

// ssetState is a sorted set of byte-string members backed by avl16.
// Members are stored zero-padded to a
// fixed ssetMaxMember width, the tradeoff avl16's fixed-stride format
// requires.
type ssetState struct {
	buf   []byte
	block *avl16.Block
}

func newSsetState() *ssetState {
	buf := make([]byte, ssetBlockSize)
	return &ssetState{buf: buf, block: avl16.Init(buf, ssetKeySize, ssetValSize)}
}

func ssetCmp(a, b []byte) int { return bytes.Compare(a, b) }

func ssetPad(member []byte) []byte {
	padded := make([]byte, ssetKeySize)
	copy(padded, member)
	return padded
}

func ssetTrim(padded, lenBytes []byte) []byte {
	n := binary.LittleEndian.Uint16(lenBytes)
	return append([]byte(nil), padded[:n]...)
}

// Sset implements a sorted set of byte-string members: INSERT adds
// (DATA_KEY_EXISTS on duplicate), REMOVE deletes (DATA_KEY_NOT_FOUND if
// absent), QUERY supports point lookup and prefix iteration.
type Sset struct{}

func NewSset() *Sset { return &Sset{} }

func (Sset) TypeName() string { return "sset" }

func (Sset) Create(o *object.Object) errs.Errno {
	o.SetState(newSsetState())
	return errs.None
}

func (Sset) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(newSsetState())
	}
	return errs.None
}

func (Sset) Close(o *object.Object) errs.Errno  { return errs.None }
func (Sset) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (Sset) Unlink(o *object.Object) errs.Errno { return errs.None }

func (Sset) state(o *object.Object) *ssetState { return o.State().(*ssetState) }

const (
	ssetQueryContains = byte(0)
	ssetQueryPrefix   = byte(1)
)

// Query handles req[0]==contains (req[1:] is the member, returns 1-byte
// bool) and req[0]==prefix (req[1:] is the prefix, returns a stream of
// length-prefixed members in sorted order, folded through a
// mapiter.AVLIterator so a single in-memory index's range flows through
// the common iterator shape).
func (s Sset) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := s.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	switch req[0] {
	case ssetQueryContains:
		member := req[1:]
		_, found := st.block.Lookup(ssetCmp, ssetPad(member))
		if found {
			return []byte{1}, errs.None
		}
		return []byte{0}, errs.None
	case ssetQueryPrefix:
		prefix := req[1:]
		it := mapiter.NewAVLIterator(st.block, ssetCmp)
		it.Seek(ssetPad(prefix))
		var out []byte
		for it.Valid() {
			member := ssetTrim(it.Key(), it.Value())
			if !bytes.HasPrefix(member, prefix) {
				break
			}
			out = appendLengthPrefixed(out, member)
			it.Next()
		}
		return out, errs.None
	default:
		return nil, errs.NotImplemented
	}
}

// Insert adds req as a member.
func (s Sset) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	if len(req) > ssetMaxMember {
		return nil, errs.NotImplemented
	}
	st := s.state(o)
	padded := ssetPad(req)
	value, existed, ok := st.block.Insert(ssetCmp, padded)
	if existed {
		return nil, errs.DataKeyExists
	}
	if !ok {
		return nil, errs.NoMemory
	}
	binary.LittleEndian.PutUint16(value, uint16(len(req)))

	member := append([]byte(nil), req...)
	if t != nil {
		t.Add(o.OID, txn.Atom{Label: "sset:insert", Undo: func() {
			st.block.Remove(ssetCmp, ssetPad(member))
		}})
	}
	return nil, errs.None
}

func (s Sset) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}

// Remove deletes req as a member.
func (s Sset) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := s.state(o)
	padded := ssetPad(req)
	ok := st.block.Remove(ssetCmp, padded)
	if !ok {
		return nil, errs.DataKeyNotFound
	}
	member := append([]byte(nil), req...)
	if t != nil {
		t.Add(o.OID, txn.Atom{Label: "sset:remove", Undo: func() {
			v, existed, insOk := st.block.Insert(ssetCmp, ssetPad(member))
			if insOk && !existed {
				binary.LittleEndian.PutUint16(v, uint16(len(member)))
			}
		}})
	}
	return nil, errs.None
}

func (s Sset) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}
