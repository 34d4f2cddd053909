package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceWriteReadRoundTrip(t *testing.T) {
	d := NewMemoryDevice()
	n, err := d.Write(10, [][]byte{[]byte("hello"), []byte("world")})
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, int64(20), d.Used())

	buf := make([]byte, 10)
	n, err = d.Read(10, [][]byte{buf})
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, "helloworld", string(buf))
}

func TestMemoryDeviceReadPastUsedFails(t *testing.T) {
	d := NewMemoryDevice()
	_, err := d.Write(0, [][]byte{[]byte("x")})
	require.NoError(t, err)

	_, err = d.Read(100, [][]byte{make([]byte, 4)})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestMemoryDeviceFreeZeroes(t *testing.T) {
	d := NewMemoryDevice()
	d.Write(0, [][]byte{[]byte("abcdef")})
	require.NoError(t, d.Free(2, 2))

	buf := make([]byte, 6)
	d.Read(0, [][]byte{buf})
	require.Equal(t, []byte{'a', 'b', 0, 0, 'e', 'f'}, buf)
}

func TestLZ4DeviceRoundTripsThroughSync(t *testing.T) {
	under := NewMemoryDevice()
	d := NewLZ4Device(under)

	payload := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")
	_, err := d.Write(0, [][]byte{payload})
	require.NoError(t, err)
	require.NoError(t, d.Sync(0, int64(len(payload))))

	// A fresh LZ4Device over the same underlying bytes must inflate
	// back to the identical logical image.
	d2 := NewLZ4Device(under)
	buf := make([]byte, len(payload))
	_, err = d2.Read(0, [][]byte{buf})
	require.NoError(t, err)
	require.Equal(t, payload, buf)

	require.Less(t, under.Used(), int64(len(payload))+8, "compressed snapshot should not be larger than raw plus header in this repetitive fixture")
}
