package wire

// WriteBytes encodes an arbitrary-length byte payload as a self-delimiting
// varint length prefix followed by the raw bytes, the general-purpose
// sibling of the tagged-field fast path (field.go's WriteFieldUint caps
// payloads at 8 bytes via its low-3-bits length encoding; object names,
// sset members, and blob values need arbitrary lengths bounded only by
// the containing buffer). Returns the number of bytes written.
func WriteBytes(buf []byte, v []byte) int {
	n := EncodeVarint(buf, uint64(len(v)))
	n += copy(buf[n:], v)
	return n
}

// BytesSize returns the number of bytes WriteBytes would write for v.
func BytesSize(v []byte) int {
	return VarintSize(uint64(len(v))) + len(v)
}

// ReadBytes is the inverse of WriteBytes: it returns a slice aliasing buf
// (no copy) and the total bytes consumed.
func ReadBytes(buf []byte) (v []byte, n int, ok bool) {
	length, vn, ok := DecodeVarint(buf)
	if !ok || vn+int(length) > len(buf) {
		return nil, 0, false
	}
	return buf[vn: vn+int(length)], vn + int(length), true
}
