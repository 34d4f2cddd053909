package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintKnownVector(t *testing.T) {
	v := uint64(1895390231)
	length := ByteSize(v)
	require.EqualValues(t, 4, length)

	buf := make([]byte, 8)
	n := EncodeUint(buf, length, v)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0x17, 0xBD, 0xFB, 0x70}, buf[:4])

	got := DecodeUint(buf[:4], length)
	require.Equal(t, v, got)
}

func TestFieldTagKnownVector(t *testing.T) {
	buf := make([]byte, 16)
	n := WriteFieldTag(buf, 5, 3)
	copy(buf[n:], "abc")
	n += 3
	require.Equal(t, []byte{0x2A, 'a', 'b', 'c'}, buf[:n])

	f, consumed, ok := ReadField(buf[:n])
	require.True(t, ok)
	require.Equal(t, n, consumed)
	require.EqualValues(t, 5, f.ID)
	require.Equal(t, "abc", string(f.Payload))
}

// Property 1: varint round-trip for representative values, with derived
// length matching byte_size semantics.
func TestVarintRoundTrip(t *testing.T) {
	vals := []uint64{0, 1, 255, 256, 65535, 65536, 1 << 32, 1<<63 - 1, 1 << 63}
	for _, v := range vals {
		l := ByteSize(v)
		buf := make([]byte, 8)
		EncodeUint(buf, l, v)
		require.Equal(t, v, DecodeUint(buf, l), "v=%d", v)
	}
}

func TestByteSize(t *testing.T) {
	require.EqualValues(t, 1, ByteSize(0))
	require.EqualValues(t, 1, ByteSize(1))
	require.EqualValues(t, 1, ByteSize(255))
	require.EqualValues(t, 2, ByteSize(256))
	require.EqualValues(t, 2, ByteSize(65535))
	require.EqualValues(t, 3, ByteSize(65536))
	require.EqualValues(t, 8, ByteSize(1<<63))
}

// Property 2: tagged-field round trip across the id-width boundaries
// (1-byte, 2-byte, 3-byte tags).
func TestFieldRoundTripAcrossIDWidths(t *testing.T) {
	cases := []struct {
		id      uint32
		payload string
	}{
		{0, "x"},
		{29, "hello"},
		{30, "boundary-30"},
		{285, "boundary-285"},
		{286, "boundary-286"},
		{100000, "big-id"},
	}
	for _, c := range cases {
		buf := make([]byte, 32)
		n := WriteFieldTag(buf, c.id, len(c.payload))
		copy(buf[n:], c.payload)
		total := n + len(c.payload)

		f, consumed, ok := ReadField(buf[:total])
		require.True(t, ok, "id=%d", c.id)
		require.Equal(t, total, consumed)
		require.Equal(t, c.id, f.ID)
		require.Equal(t, c.payload, string(f.Payload))
	}
}

func TestWriteFieldUintRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	n := WriteFieldUint(buf, 7, 1895390231)
	id, v, consumed, ok := ReadFieldUint(buf[:n])
	require.True(t, ok)
	require.Equal(t, n, consumed)
	require.EqualValues(t, 7, id)
	require.EqualValues(t, 1895390231, v)
}

func TestReaderHandlesSplitFeeds(t *testing.T) {
	buf := make([]byte, 16)
	n := WriteFieldTag(buf, 5, 3)
	copy(buf[n:], "abc")
	n += 3
	full := buf[:n]

	var r Reader
	// Feed one byte at a time; TryReadField must not succeed until enough
	// bytes have arrived, and must succeed exactly once everything has.
	for i := 0; i < len(full)-1; i++ {
		r.Feed(full[i: i+1])
		_, ok := r.TryReadField()
		require.False(t, ok, "should not decode with only %d bytes", i+1)
	}
	r.Feed(full[len(full)-1:])
	f, ok := r.TryReadField()
	require.True(t, ok)
	require.EqualValues(t, 5, f.ID)
	require.Equal(t, "abc", string(f.Payload))
}

func TestZigZag(t *testing.T) {
	for _, v := range []int64{0, -1, 1, -2, 2, 1 << 40, -(1 << 40)} {
		require.Equal(t, v, ZigZagDecode(ZigZagEncode(v)))
	}
}

func TestVarintContinuationRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	for _, v := range []uint64{0, 1, 127, 128, 16383, 16384, 1 << 40} {
		n := EncodeVarint(buf, v)
		require.Equal(t, VarintSize(v), n)
		got, consumed, ok := DecodeVarint(buf[:n])
		require.True(t, ok)
		require.Equal(t, n, consumed)
		require.Equal(t, v, got)
	}
}

func TestMsgTypeClassAndOp(t *testing.T) {
	mt := MakeMsgType(ClassObject, OpInsert)
	require.Equal(t, ClassObject, mt.Class())
	require.Equal(t, OpInsert, mt.Op())
	require.Equal(t, LockWrite, ImpliedLockMode(mt.Op()))

	mt2 := MakeMsgType(ClassSemantic, OpRename)
	require.Equal(t, ClassSemantic, mt2.Class())
	require.Equal(t, OpRename, mt2.Op())
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	h := Header{MsgType: MakeMsgType(ClassObject, OpQuery), ReqID: 1895390231, IsRequest: true}
	buf := make([]byte, 32)
	n := EncodeHeader(buf, h)

	var fr FrameReader
	fr.Feed(buf[:n])
	got, ok := fr.TryReadHeader()
	require.True(t, ok)
	require.Equal(t, h, got)
}

func TestFrameHeaderSplitAcrossReads(t *testing.T) {
	h := Header{MsgType: MakeMsgType(ClassSemantic, OpCreate), ReqID: 42, IsRequest: false}
	buf := make([]byte, 32)
	n := EncodeHeader(buf, h)

	var fr FrameReader
	for i := 0; i < n-1; i++ {
		fr.Feed(buf[i: i+1])
		_, ok := fr.TryReadHeader()
		require.False(t, ok, "decoded header too early at byte %d", i)
	}
	fr.Feed(buf[n-1: n])
	got, ok := fr.TryReadHeader()
	require.True(t, ok)
	require.Equal(t, h, got)
}
