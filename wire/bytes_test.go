package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesRoundTrip(t *testing.T) {
	for _, s := range [][]byte{
		{},
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog, and then some more padding past eight bytes"),
	} {
		buf := make([]byte, BytesSize(s))
		n := WriteBytes(buf, s)
		require.Equal(t, len(buf), n)

		got, consumed, ok := ReadBytes(buf)
		require.True(t, ok)
		require.Equal(t, n, consumed)
		require.Equal(t, s, got)
	}
}

func TestReadBytesTruncatedBufferFails(t *testing.T) {
	buf := make([]byte, BytesSize([]byte("hello")))
	WriteBytes(buf, []byte("hello"))
	_, _, ok := ReadBytes(buf[:len(buf)-1])
	require.False(t, ok)
}
