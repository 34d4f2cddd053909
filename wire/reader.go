package wire

// Reader accumulates bytes fed from a transport that may deliver a tag,
// its length, or its payload split across arbitrary buffer
// boundaries. Feed is cheap to
// call repeatedly; TryReadField only consumes bytes once a full field is
// available.
type Reader struct {
	buf []byte
}

// Feed appends more bytes as they arrive off the wire.
func (r *Reader) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// TryReadField attempts to decode one field from the accumulated buffer.
// ok is false if more bytes are needed; in that case no bytes are
// consumed, so the caller can Feed more and retry.
func (r *Reader) TryReadField() (f Field, ok bool) {
	f, n, ok := ReadField(r.buf)
	if !ok {
		return Field{}, false
	}
	r.buf = r.buf[n:]
	return f, true
}

// TryReadFieldUint is the fixed-length-uint sibling of TryReadField.
func (r *Reader) TryReadFieldUint() (id uint32, v uint64, ok bool) {
	id, v, n, ok := ReadFieldUint(r.buf)
	if !ok {
		return 0, 0, false
	}
	r.buf = r.buf[n:]
	return id, v, true
}

// Len reports how many unconsumed bytes remain buffered.
func (r *Reader) Len() int { return len(r.buf) }

// Bytes exposes the unconsumed tail, e.g. once a caller knows no more
// fields follow and wants the raw remainder.
func (r *Reader) Bytes() []byte { return r.buf }
