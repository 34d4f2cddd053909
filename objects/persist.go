package objects

import (
	"encoding/binary"

	"github.com/raleighsl/fs/avl16"
	"github.com/raleighsl/fs/bucket"
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/wire"
)

// Every built-in plugin implements object.StateCodec so the fs-level
// checkpoint can persist it through the device interface. Images are
// self-contained: the wire varint/bytes coding carries page buffers and
// the small in-memory indexes, and decode rebuilds whatever is cheaper
// to derive (the deque's seq->page map) by rescanning the pages.

// EncodeState serializes the counter as its raw 8-byte value.
func (c Counter) EncodeState(o *object.Object) ([]byte, errs.Errno) {
	buf := make([]byte, 8)
	wire.EncodeUint(buf, 8, c.state(o).value)
	return buf, errs.None
}

// DecodeState restores a counter from an EncodeState image.
func (Counter) DecodeState(o *object.Object, image []byte) errs.Errno {
	if len(image) != 8 {
		return errs.NotImplemented
	}
	o.SetState(&counterState{value: wire.DecodeUint(image, 8)})
	return errs.None
}

// EncodeState serializes the number cell zigzag-encoded, matching its
// wire representation everywhere else.
func (n Number) EncodeState(o *object.Object) ([]byte, errs.Errno) {
	buf := make([]byte, 8)
	wire.EncodeUint(buf, 8, wire.ZigZagEncode(n.state(o).value))
	return buf, errs.None
}

func (Number) DecodeState(o *object.Object, image []byte) errs.Errno {
	if len(image) != 8 {
		return errs.NotImplemented
	}
	o.SetState(&numberState{value: wire.ZigZagDecode(wire.DecodeUint(image, 8))})
	return errs.None
}

// EncodeState serializes the sset as its backing avl16 block verbatim:
// the block is already a self-contained in-place format, so
// the image is the page itself.
func (s Sset) EncodeState(o *object.Object) ([]byte, errs.Errno) {
	return append([]byte(nil), s.state(o).buf...), errs.None
}

func (Sset) DecodeState(o *object.Object, image []byte) errs.Errno {
	if len(image) != ssetBlockSize {
		return errs.NotImplemented
	}
	buf := append([]byte(nil), image...)
	o.SetState(&ssetState{buf: buf, block: avl16.Open(buf)})
	return errs.None
}

// pageChainSize sizes an encoded page chain plus its live-seq index.
func pageChainSize(pages []*dequePage, live []uint64) int {
	size := wire.VarintSize(uint64(len(pages)))
	for _, p := range pages {
		size += wire.BytesSize(p.buf)
	}
	size += wire.VarintSize(uint64(len(live)))
	for _, seq := range live {
		size += wire.VarintSize(seq)
	}
	return size
}

func encodePageChain(buf []byte, pages []*dequePage, live []uint64) int {
	n := wire.EncodeVarint(buf, uint64(len(pages)))
	for _, p := range pages {
		n += wire.WriteBytes(buf[n:], p.buf)
	}
	n += wire.EncodeVarint(buf[n:], uint64(len(live)))
	for _, seq := range live {
		n += wire.EncodeVarint(buf[n:], seq)
	}
	return n
}

// decodePageChain rebuilds the bucket pages, the live-seq index, and the
// seq->page map (rescanned from the pages rather than persisted).
func decodePageChain(buf []byte) (pages []*dequePage, pageOf map[uint64]int, live []uint64, n int, ok bool) {
	nPages, n, ok := wire.DecodeVarint(buf)
	if !ok {
		return nil, nil, nil, 0, false
	}
	pageOf = map[uint64]int{}
	for i := uint64(0); i < nPages; i++ {
		raw, bn, ok := wire.ReadBytes(buf[n:])
		if !ok {
			return nil, nil, nil, 0, false
		}
		n += bn
		pbuf := append([]byte(nil), raw...)
		b, opened := bucket.Open(pbuf, dequeMagic)
		if !opened {
			return nil, nil, nil, 0, false
		}
		idx := len(pages)
		pages = append(pages, &dequePage{buf: pbuf, b: b})
		for e, found := b.FetchFirst(); found; e, found = b.FetchNext(e.Index) {
			pageOf[binary.BigEndian.Uint64(e.Key)] = idx
		}
	}
	nLive, vn, ok := wire.DecodeVarint(buf[n:])
	if !ok {
		return nil, nil, nil, 0, false
	}
	n += vn
	live = make([]uint64, 0, nLive)
	for i := uint64(0); i < nLive; i++ {
		seq, vn, ok := wire.DecodeVarint(buf[n:])
		if !ok {
			return nil, nil, nil, 0, false
		}
		n += vn
		live = append(live, seq)
	}
	return pages, pageOf, live, n, true
}

// EncodeState serializes the deque as its page chain, live index, and
// the two sequence cursors.
func (d Deque) EncodeState(o *object.Object) ([]byte, errs.Errno) {
	st := d.state(o)
	buf := make([]byte, pageChainSize(st.pages, st.live)+wire.VarintSize(st.nextFront)+wire.VarintSize(st.nextBack))
	n := encodePageChain(buf, st.pages, st.live)
	n += wire.EncodeVarint(buf[n:], st.nextFront)
	n += wire.EncodeVarint(buf[n:], st.nextBack)
	return buf[:n], errs.None
}

func (Deque) DecodeState(o *object.Object, image []byte) errs.Errno {
	pages, pageOf, live, n, ok := decodePageChain(image)
	if !ok {
		return errs.NotImplemented
	}
	nextFront, vn, ok := wire.DecodeVarint(image[n:])
	if !ok {
		return errs.NotImplemented
	}
	n += vn
	nextBack, _, ok := wire.DecodeVarint(image[n:])
	if !ok {
		return errs.NotImplemented
	}
	o.SetState(&dequeState{
		pages:     pages,
		pageOf:    pageOf,
		live:      live,
		nextFront: nextFront,
		nextBack:  nextBack,
	})
	return errs.None
}

// EncodeState serializes the flow as its page chain plus the credit
// accounting the deque shape doesn't carry.
func (f Flow) EncodeState(o *object.Object) ([]byte, errs.Errno) {
	st := f.state(o)
	buf := make([]byte, pageChainSize(st.pages, st.live)+
		wire.VarintSize(st.nextBack)+wire.VarintSize(uint64(st.bufferedBytes))+wire.VarintSize(uint64(st.capacity)))
	n := encodePageChain(buf, st.pages, st.live)
	n += wire.EncodeVarint(buf[n:], st.nextBack)
	n += wire.EncodeVarint(buf[n:], uint64(st.bufferedBytes))
	n += wire.EncodeVarint(buf[n:], uint64(st.capacity))
	return buf[:n], errs.None
}

func (Flow) DecodeState(o *object.Object, image []byte) errs.Errno {
	pages, pageOf, live, n, ok := decodePageChain(image)
	if !ok {
		return errs.NotImplemented
	}
	nextBack, vn, ok := wire.DecodeVarint(image[n:])
	if !ok {
		return errs.NotImplemented
	}
	n += vn
	buffered, vn, ok := wire.DecodeVarint(image[n:])
	if !ok {
		return errs.NotImplemented
	}
	n += vn
	capacity, _, ok := wire.DecodeVarint(image[n:])
	if !ok {
		return errs.NotImplemented
	}
	o.SetState(&flowState{
		pages:         pages,
		pageOf:        pageOf,
		live:          live,
		nextBack:      nextBack,
		bufferedBytes: int(buffered),
		capacity:      int(capacity),
	})
	return errs.None
}
