// Package objects holds the built-in object-type plugins (counter,
// deque, sset, number, flow), one file per type, each built on the
// bucket/AVL-16/wire primitives and registered against package object's
// Registry via its own New<Type>() constructor (wiring is fs's job, not
// an init()-time side effect).
package objects

import (
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
	"github.com/raleighsl/fs/wire"
)

// counterState is the in-memory payload a Counter object carries once
// open.
type counterState struct {
	value uint64
}

// Counter implements a 64-bit counter object: QUERY reads the value; INSERT sets the initial
// value; UPDATE does delta-add or compare-and-swap; REMOVE resets to
// zero; IOCTL exposes get/set-raw.
type Counter struct{}

// NewCounter builds the counter plugin (stateless; all state lives on
// the object).
func NewCounter() *Counter { return &Counter{} }

func (Counter) TypeName() string { return "counter" }

func (Counter) Create(o *object.Object) errs.Errno {
	o.SetState(&counterState{})
	return errs.None
}

func (Counter) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(&counterState{})
	}
	return errs.None
}

func (Counter) Close(o *object.Object) errs.Errno  { return errs.None }
func (Counter) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (Counter) Unlink(o *object.Object) errs.Errno { return errs.None }

func (Counter) state(o *object.Object) *counterState {
	return o.State().(*counterState)
}

// Query returns the 8-byte little-endian current value.
func (c Counter) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	buf := make([]byte, 8)
	wire.EncodeUint(buf, 8, c.state(o).value)
	return buf, errs.None
}

// Insert sets the counter's initial value; req is its 8-byte
// little-endian value. Fails DATA_KEY_EXISTS if the counter already
// holds a nonzero value.
const counterInitializedOp = "counter:init"

func (c Counter) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := c.state(o)
	if st.value != 0 {
		return nil, errs.DataKeyExists
	}
	if len(req) != 8 {
		return nil, errs.NotImplemented
	}
	st.value = wire.DecodeUint(req, 8)
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = 0 }, Label: counterInitializedOp})
	}
	return nil, errs.None
}

const (
	counterOpAdd = byte(0)
	counterOpCAS = byte(1)
)

// Update dispatches req[0] to add (delta, zigzag-encoded int64 in
// req[1:9]) or compare-and-swap (expected in req[1:9], new value in
// req[9:17], both little-endian uint64; DATA_CAS on mismatch).
func (c Counter) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := c.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	prev := st.value
	switch req[0] {
	case counterOpAdd:
		if len(req) != 9 {
			return nil, errs.NotImplemented
		}
		delta := wire.ZigZagDecode(wire.DecodeUint(req[1:9], 8))
		st.value = uint64(int64(st.value) + delta)
	case counterOpCAS:
		if len(req) != 17 {
			return nil, errs.NotImplemented
		}
		expected := wire.DecodeUint(req[1:9], 8)
		next := wire.DecodeUint(req[9:17], 8)
		if st.value != expected {
			return nil, errs.DataCAS
		}
		st.value = next
	default:
		return nil, errs.NotImplemented
	}
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "counter:update"})
	}
	return nil, errs.None
}

// Remove resets the counter to zero.
func (c Counter) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := c.state(o)
	prev := st.value
	st.value = 0
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "counter:remove"})
	}
	return nil, errs.None
}

const (
	counterIoctlGet = byte(0)
	counterIoctlSet = byte(1)
)

// Ioctl exposes get/set-raw: req[0]==0 returns the raw 8-byte value;
// req[0]==1 with req[1:9] sets it directly, bypassing CAS semantics.
func (c Counter) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := c.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	switch req[0] {
	case counterIoctlGet:
		buf := make([]byte, 8)
		wire.EncodeUint(buf, 8, st.value)
		return buf, errs.None
	case counterIoctlSet:
		if len(req) != 9 {
			return nil, errs.NotImplemented
		}
		prev := st.value
		st.value = wire.DecodeUint(req[1:9], 8)
		if t != nil {
			t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "counter:ioctl-set"})
		}
		return nil, errs.None
	default:
		return nil, errs.NotImplemented
	}
}
