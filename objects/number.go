package objects

import (
	"math"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
	"github.com/raleighsl/fs/wire"
)

// numberState holds the signed 64-bit cell.
type numberState struct {
	value int64
}

// Number implements a typed signed 64-bit arithmetic cell: UPDATE
// supports add/sub/mul/div/mod, surfacing NUMBER_DIVMOD_BYZERO and
// NUMBER_DIVMOD_OVERFLOW instead of wrapping silently.
type Number struct{}

func NewNumber() *Number { return &Number{} }

func (Number) TypeName() string { return "number" }

func (Number) Create(o *object.Object) errs.Errno {
	o.SetState(&numberState{})
	return errs.None
}

func (Number) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(&numberState{})
	}
	return errs.None
}

func (Number) Close(o *object.Object) errs.Errno  { return errs.None }
func (Number) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (Number) Unlink(o *object.Object) errs.Errno { return errs.None }

func (Number) state(o *object.Object) *numberState {
	return o.State().(*numberState)
}

func (n Number) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	buf := make([]byte, 8)
	wire.EncodeUint(buf, 8, wire.ZigZagEncode(n.state(o).value))
	return buf, errs.None
}

// Insert sets the cell's initial value; req is its zigzag-encoded
// 8-byte little-endian value.
func (n Number) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	if len(req) != 8 {
		return nil, errs.NotImplemented
	}
	st := n.state(o)
	prev := st.value
	st.value = wire.ZigZagDecode(wire.DecodeUint(req, 8))
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "number:insert"})
	}
	return nil, errs.None
}

const (
	numberOpAdd = byte(0)
	numberOpSub = byte(1)
	numberOpMul = byte(2)
	numberOpDiv = byte(3)
	numberOpMod = byte(4)
)

// Update dispatches req[0] to add/sub/mul/div/mod against the operand
// in req[1:9] (zigzag-encoded int64).
func (n Number) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	if len(req) != 9 {
		return nil, errs.NotImplemented
	}
	st := n.state(o)
	operand := wire.ZigZagDecode(wire.DecodeUint(req[1:9], 8))
	prev := st.value
	var next int64

	switch req[0] {
	case numberOpAdd:
		next = prev + operand
		if (operand > 0 && next < prev) || (operand < 0 && next > prev) {
			return nil, errs.NumberDivModOverflow
		}
	case numberOpSub:
		next = prev - operand
		if (operand < 0 && next < prev) || (operand > 0 && next > prev) {
			return nil, errs.NumberDivModOverflow
		}
	case numberOpMul:
		if prev == math.MinInt64 && operand == -1 {
			return nil, errs.NumberDivModOverflow
		}
		if prev != 0 && operand != 0 {
			next = prev * operand
			if next/operand != prev {
				return nil, errs.NumberDivModOverflow
			}
		}
	case numberOpDiv:
		if operand == 0 {
			return nil, errs.NumberDivModByZero
		}
		if prev == math.MinInt64 && operand == -1 {
			return nil, errs.NumberDivModOverflow
		}
		next = prev / operand
	case numberOpMod:
		if operand == 0 {
			return nil, errs.NumberDivModByZero
		}
		if prev == math.MinInt64 && operand == -1 {
			return nil, errs.NumberDivModOverflow
		}
		next = prev % operand
	default:
		return nil, errs.NotImplemented
	}

	st.value = next
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "number:update"})
	}
	return nil, errs.None
}

// Remove resets the cell to zero.
func (n Number) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := n.state(o)
	prev := st.value
	st.value = 0
	if t != nil {
		t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "number:remove"})
	}
	return nil, errs.None
}

// Ioctl exposes get/set-raw identically to Counter.Ioctl.
func (n Number) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := n.state(o)
	if len(req) < 1 {
		return nil, errs.NotImplemented
	}
	switch req[0] {
	case counterIoctlGet:
		buf := make([]byte, 8)
		wire.EncodeUint(buf, 8, wire.ZigZagEncode(st.value))
		return buf, errs.None
	case counterIoctlSet:
		if len(req) != 9 {
			return nil, errs.NotImplemented
		}
		prev := st.value
		st.value = wire.ZigZagDecode(wire.DecodeUint(req[1:9], 8))
		if t != nil {
			t.Add(o.OID, txn.Atom{Undo: func() { st.value = prev }, Label: "number:ioctl-set"})
		}
		return nil, errs.None
	default:
		return nil, errs.NotImplemented
	}
}
