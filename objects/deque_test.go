package objects

import (
	"encoding/binary"
	"testing"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
	"github.com/stretchr/testify/require"
)

func newDequeObject(t *testing.T) *object.Object {
	t.Helper()
	o := &object.Object{OID: 1, TypeName: "deque"}
	require.Equal(t, errs.None, NewDeque().Create(o))
	return o
}

func pushReq(side byte, payload string) []byte {
	return append([]byte{side}, []byte(payload)...)
}

func TestDequePushBackPopFrontIsFIFO(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()

	_, errno := d.Insert(o, nil, pushReq(dequeOpPushBack, "a"))
	require.Equal(t, errs.None, errno)
	_, errno = d.Insert(o, nil, pushReq(dequeOpPushBack, "b"))
	require.Equal(t, errs.None, errno)

	resp, errno := d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)

	resp, errno = d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("b"), resp)
}

func TestDequePushFrontReversesOrder(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()

	d.Insert(o, nil, pushReq(dequeOpPushFront, "a"))
	d.Insert(o, nil, pushReq(dequeOpPushFront, "b"))

	resp, errno := d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("b"), resp)

	resp, errno = d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)
}

func TestDequePopBackFromEmptyReturnsDataNoItems(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()

	_, errno := d.Remove(o, nil, []byte{dequeOpPopBack})
	require.ErrorIs(t, errno, errs.DataNoItems)
}

func TestDequePeekFrontAndBackDoNotConsume(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()
	d.Insert(o, nil, pushReq(dequeOpPushBack, "a"))
	d.Insert(o, nil, pushReq(dequeOpPushBack, "b"))

	resp, errno := d.Query(o, nil, []byte{dequeOpPeekFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)

	resp, errno = d.Query(o, nil, []byte{dequeOpPeekBack})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("b"), resp)

	resp, errno = d.Query(o, nil, []byte{dequeOpPeekFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp, "peek must not consume the entry")
}

func TestDequeQueryIterateReturnsFrontToBackOrder(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()
	d.Insert(o, nil, pushReq(dequeOpPushBack, "a"))
	d.Insert(o, nil, pushReq(dequeOpPushBack, "b"))
	d.Insert(o, nil, pushReq(dequeOpPushFront, "z"))

	resp, errno := d.Query(o, nil, []byte{dequeOpIterate})
	require.Equal(t, errs.None, errno)

	var got []string
	for len(resp) > 0 {
		n := binary.LittleEndian.Uint32(resp[:4])
		resp = resp[4:]
		got = append(got, string(resp[:n]))
		resp = resp[n:]
	}
	require.Equal(t, []string{"z", "a", "b"}, got)
}

func TestDequePushBackRollbackRemovesEntry(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()
	d.Insert(o, nil, pushReq(dequeOpPushBack, "a"))

	mgr := txn.NewManager()
	tx := mgr.Create()
	_, errno := d.Insert(o, tx, pushReq(dequeOpPushBack, "b"))
	require.Equal(t, errs.None, errno)

	tx.Rollback()

	resp, errno := d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)

	_, errno = d.Remove(o, nil, []byte{dequeOpPopFront})
	require.ErrorIs(t, errno, errs.DataNoItems)
}

func TestDequePopFrontRollbackRestoresEntryAtFront(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()
	d.Insert(o, nil, pushReq(dequeOpPushBack, "a"))
	d.Insert(o, nil, pushReq(dequeOpPushBack, "b"))

	mgr := txn.NewManager()
	tx := mgr.Create()
	resp, errno := d.Remove(o, tx, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)

	tx.Rollback()

	resp, errno = d.Remove(o, nil, []byte{dequeOpPopFront})
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("a"), resp)
}

func TestDequeUpdateAndIoctlNotImplemented(t *testing.T) {
	o := newDequeObject(t)
	d := NewDeque()

	_, errno := d.Update(o, nil, nil)
	require.ErrorIs(t, errno, errs.NotImplemented)

	_, errno = d.Ioctl(o, nil, nil)
	require.ErrorIs(t, errno, errs.NotImplemented)
}
