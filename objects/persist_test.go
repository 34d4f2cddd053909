package objects

import (
	"testing"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/wire"
	"github.com/stretchr/testify/require"
)

// reopen round-trips o's state through the plugin's codec into a fresh
// object, the same path the fs checkpoint drives via device storage.
func reopen(t *testing.T, codec object.StateCodec, o *object.Object) *object.Object {
	t.Helper()
	image, errno := codec.EncodeState(o)
	require.Equal(t, errs.None, errno)
	restored := &object.Object{OID: o.OID, TypeName: o.TypeName}
	require.Equal(t, errs.None, codec.DecodeState(restored, image))
	return restored
}

func TestCounterStateRoundTrip(t *testing.T) {
	c := NewCounter()
	o := newCounterObject(t)
	_, errno := c.Insert(o, nil, le8(1234))
	require.Equal(t, errs.None, errno)

	resp, errno := c.Query(reopen(t, c, o), nil, nil)
	require.Equal(t, errs.None, errno)
	require.Equal(t, uint64(1234), wire.DecodeUint(resp, 8))
}

func TestNumberStateRoundTrip(t *testing.T) {
	n := NewNumber()
	o := &object.Object{OID: 2, TypeName: "number"}
	require.Equal(t, errs.None, n.Create(o))
	_, errno := n.Insert(o, nil, le8(wire.ZigZagEncode(-99)))
	require.Equal(t, errs.None, errno)

	resp, errno := n.Query(reopen(t, n, o), nil, nil)
	require.Equal(t, errs.None, errno)
	require.Equal(t, int64(-99), wire.ZigZagDecode(wire.DecodeUint(resp, 8)))
}

func TestSsetStateRoundTrip(t *testing.T) {
	s := NewSset()
	o := &object.Object{OID: 3, TypeName: "sset"}
	require.Equal(t, errs.None, s.Create(o))
	for _, m := range []string{"apple", "banana", "cherry"} {
		_, errno := s.Insert(o, nil, []byte(m))
		require.Equal(t, errs.None, errno)
	}

	restored := reopen(t, s, o)
	resp, errno := s.Query(restored, nil, append([]byte{ssetQueryContains}, "banana"...))
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte{1}, resp)

	// The restored block keeps full insert/remove behavior.
	_, errno = s.Insert(restored, nil, []byte("banana"))
	require.ErrorIs(t, errno, errs.DataKeyExists)
	_, errno = s.Remove(restored, nil, []byte("apple"))
	require.Equal(t, errs.None, errno)
}

func TestDequeStateRoundTrip(t *testing.T) {
	d := NewDeque()
	o := &object.Object{OID: 4, TypeName: "deque"}
	require.Equal(t, errs.None, d.Create(o))
	for _, v := range []string{"a", "b", "c"} {
		_, errno := d.Insert(o, nil, append([]byte{dequeOpPushBack}, v...))
		require.Equal(t, errs.None, errno)
	}
	_, errno := d.Insert(o, nil, append([]byte{dequeOpPushFront}, 'z'))
	require.Equal(t, errs.None, errno)

	restored := reopen(t, d, o)
	for _, want := range []string{"z", "a", "b", "c"} {
		resp, errno := d.Remove(restored, nil, []byte{dequeOpPopFront})
		require.Equal(t, errs.None, errno)
		require.Equal(t, []byte(want), resp)
	}
	_, errno = d.Remove(restored, nil, []byte{dequeOpPopFront})
	require.ErrorIs(t, errno, errs.DataNoItems)
}

func TestFlowStateRoundTrip(t *testing.T) {
	f := NewFlow()
	o := &object.Object{OID: 5, TypeName: "flow"}
	require.Equal(t, errs.None, f.Create(o))
	_, errno := f.Insert(o, nil, []byte("chunk1"))
	require.Equal(t, errs.None, errno)
	_, errno = f.Insert(o, nil, []byte("chunk2"))
	require.Equal(t, errs.None, errno)

	restored := reopen(t, f, o)

	// Credit accounting survives the round trip.
	resp, errno := f.Query(restored, nil, []byte{flowQueryCredit})
	require.Equal(t, errs.None, errno)
	credit := wire.DecodeUint(resp, 8)
	require.Equal(t, uint64(flowDefaultCapacity-len("chunk1")-len("chunk2")), credit)

	resp, errno = f.Remove(restored, nil, nil)
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte("chunk1"), resp)
}
