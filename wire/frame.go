package wire

// Header is the parsed control word plus msg_type/req_id. Body is whatever tagged fields follow; parsing it is
// the caller's job once the header is assembled.
type Header struct {
	MsgType   MsgType
	ReqID     uint64
	IsRequest bool
}

// EncodeHeader writes the 1-byte control word followed by msg_type and
// req_id little-endian, sized to the minimum bytes each needs, and returns
// the number of bytes written.
func EncodeHeader(buf []byte, h Header) int {
	mtLen := ByteSize(uint64(h.MsgType))
	if mtLen == 0 {
		mtLen = 1
	}
	ridLen := ByteSize(h.ReqID)
	if ridLen == 0 {
		ridLen = 1
	}
	var ctrl byte
	ctrl |= (mtLen - 1) << 5
	ctrl |= (ridLen - 1) << 2
	if h.IsRequest {
		ctrl |= 1 << 1
	}
	buf[0] = ctrl
	n := 1
	n += EncodeUint(buf[n:], mtLen, uint64(h.MsgType))
	n += EncodeUint(buf[n:], ridLen, h.ReqID)
	return n
}

// FrameReader assembles a Header from bytes that may arrive split across
// transport reads, then hands off the
// remaining bytes as Reader-ready body.
type FrameReader struct {
	buf []byte
}

func (fr *FrameReader) Feed(b []byte) { fr.buf = append(fr.buf, b...) }

// TryReadHeader decodes the control word and the two trailing integers.
// ok is false (no bytes consumed) if not enough has been fed yet.
func (fr *FrameReader) TryReadHeader() (h Header, ok bool) {
	if len(fr.buf) < 1 {
		return Header{}, false
	}
	ctrl := fr.buf[0]
	mtLen := uint8((ctrl>>5)&0x7) + 1
	ridLen := uint8((ctrl>>2)&0x7) + 1
	isReq := (ctrl>>1)&1 == 1

	need := 1 + int(mtLen) + int(ridLen)
	if len(fr.buf) < need {
		return Header{}, false
	}
	mt := DecodeUint(fr.buf[1:], mtLen)
	rid := DecodeUint(fr.buf[1+int(mtLen):], ridLen)
	fr.buf = fr.buf[need:]
	return Header{MsgType: MsgType(mt), ReqID: rid, IsRequest: isReq}, true
}

// Body returns everything fed but not yet consumed by TryReadHeader: the
// tagged-field body to be handed to a Reader.
func (fr *FrameReader) Body() []byte { return fr.buf }
