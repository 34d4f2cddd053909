// Package kvmap implements two small in-place key/value maps used as
// intrusive indexes where an AVL-16 tree is more structure than the
// data justifies: ChainMap, a fixed-bucket hash map with chained
// collision resolution, and TinyMap, the linear-scan variant for a
// handful of entries (worst-case O(N) on miss, and fine with it).
package kvmap

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// ChainHeader layout (little-endian):
//
//	[0:4)   number of buckets (uint32)
//	[4:6)   node stride (uint16): next(2) + hash(4) + keySize + valSize
//	[6:8)   keySize (uint16)
//	[8:10)  free-list head (uint16)
//	[10:12) bump offset (uint16)
//
// The header is followed by a fixed array of 2-byte bucket head offsets
// and then a node arena, the same free-list-backed bump allocator shape
// as avl16.Block.
const chainHeaderSize = 12
const nullChainOffset = 0

// ChainMap is a fixed-bucket hash map with chained collision resolution,
// addressed by 16-bit offsets (mirrors avl16's in-place addressing so it
// can live in the same kind of fixed-size backing block).
type ChainMap struct {
	data       []byte
	numBuckets uint32
	keySize    int
	valSize    int
	stride     int // next(2) + hash(4) + key + value
}

func le16(b []byte) uint16       { return binary.LittleEndian.Uint16(b) }
func putLe16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func le32(b []byte) uint32       { return binary.LittleEndian.Uint32(b) }
func putLe32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func hashOf(key []byte) uint32 { return uint32(xxhash.Checksum64(key)) }

// InitChainMap formats block with numBuckets hash buckets, ready for
// keys/values of the given fixed sizes.
func InitChainMap(block []byte, numBuckets uint32, keySize, valSize int) *ChainMap {
	stride := 6 + keySize + valSize
	bucketsBytes := int(numBuckets) * 2
	need := chainHeaderSize + bucketsBytes
	if len(block) < need {
		panic("kvmap: block too small for bucket array")
	}
	m := &ChainMap{data: block, numBuckets: numBuckets, keySize: keySize, valSize: valSize, stride: stride}
	putLe32(block[0:4], numBuckets)
	putLe16(block[4:6], uint16(stride))
	putLe16(block[6:8], uint16(keySize))
	m.setFreeHead(nullChainOffset)
	m.setBump(uint16(need))
	for i := uint32(0); i < numBuckets; i++ {
		putLe16(m.bucketSlot(i), nullChainOffset)
	}
	return m
}

func OpenChainMap(block []byte) *ChainMap {
	numBuckets := le32(block[0:4])
	stride := int(le16(block[4:6]))
	keySize := int(le16(block[6:8]))
	valSize := stride - 6 - keySize
	return &ChainMap{data: block, numBuckets: numBuckets, keySize: keySize, valSize: valSize, stride: stride}
}

func (m *ChainMap) freeHead() uint16     { return le16(m.data[8:10]) }
func (m *ChainMap) setFreeHead(v uint16) { putLe16(m.data[8:10], v) }
func (m *ChainMap) bump() uint16         { return le16(m.data[10:12]) }
func (m *ChainMap) setBump(v uint16)     { putLe16(m.data[10:12], v) }

func (m *ChainMap) bucketSlot(i uint32) []byte {
	off := chainHeaderSize + int(i)*2
	return m.data[off: off+2]
}

func (m *ChainMap) node(o uint16) []byte { return m.data[int(o): int(o)+m.stride] }
func (m *ChainMap) next(o uint16) uint16     { return le16(m.node(o)[0:2]) }
func (m *ChainMap) setNext(o, v uint16)      { putLe16(m.node(o)[0:2], v) }
func (m *ChainMap) hashAt(o uint16) uint32   { return le32(m.node(o)[2:6]) }
func (m *ChainMap) keyAt(o uint16) []byte    { return m.node(o)[6: 6+m.keySize] }
func (m *ChainMap) valueAt(o uint16) []byte  { return m.node(o)[6+m.keySize: m.stride] }

func (m *ChainMap) alloc() (uint16, bool) {
	if fh := m.freeHead(); fh != nullChainOffset {
		m.setFreeHead(m.next(fh))
		return fh, true
	}
	b := m.bump()
	if int(b)+m.stride > len(m.data) {
		return 0, false
	}
	m.setBump(b + uint16(m.stride))
	return b, true
}

type EqualFn func(a, b []byte) bool

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Get performs a chained lookup; worst case O(bucket chain length).
func (m *ChainMap) Get(key []byte) ([]byte, bool) {
	h := hashOf(key)
	bucket := h % m.numBuckets
	o := le16(m.bucketSlot(bucket))
	for o != nullChainOffset {
		if m.hashAt(o) == h && bytesEqual(m.keyAt(o), key) {
			return m.valueAt(o), true
		}
		o = m.next(o)
	}
	return nil, false
}

// Put inserts key if absent, returning its value slot and existed=false,
// or the existing slot's value and existed=true. ok is false if the
// block ran out of space for a new node.
func (m *ChainMap) Put(key []byte) (value []byte, existed, ok bool) {
	if v, found := m.Get(key); found {
		return v, true, true
	}
	slot, allocated := m.alloc()
	if !allocated {
		return nil, false, false
	}
	h := hashOf(key)
	bucket := h % m.numBuckets
	head := le16(m.bucketSlot(bucket))
	m.setNext(slot, head)
	putLe32(m.node(slot)[2:6], h)
	copy(m.keyAt(slot), key)
	putLe16(m.bucketSlot(bucket), slot)
	return m.valueAt(slot), false, true
}

// Remove deletes key if present, returning whether it was found; the
// freed node goes onto the free list.
func (m *ChainMap) Remove(key []byte) bool {
	h := hashOf(key)
	bucket := h % m.numBuckets
	prev := uint16(nullChainOffset)
	o := le16(m.bucketSlot(bucket))
	for o != nullChainOffset {
		if m.hashAt(o) == h && bytesEqual(m.keyAt(o), key) {
			if prev == nullChainOffset {
				putLe16(m.bucketSlot(bucket), m.next(o))
			} else {
				m.setNext(prev, m.next(o))
			}
			m.setNext(o, m.freeHead())
			m.setFreeHead(o)
			return true
		}
		prev = o
		o = m.next(o)
	}
	return false
}

// TinyMap is the O(n) linear-scan variant for objects with so few entries
// that a hash table's fixed overhead isn't worth it.
//
// Layout: header [count(2) stride(2)], then a packed array of
// [used(1)][key][value] slots scanned front to back.
type TinyMap struct {
	data    []byte
	keySize int
	valSize int
	stride  int
}

const tinyHeaderSize = 4

func InitTinyMap(block []byte, keySize, valSize int) *TinyMap {
	stride := 1 + keySize + valSize
	m := &TinyMap{data: block, keySize: keySize, valSize: valSize, stride: stride}
	putLe16(block[0:2], 0)
	putLe16(block[2:4], uint16(stride))
	return m
}

func (m *TinyMap) Count() int { return int(le16(m.data[0:2])) }
func (m *TinyMap) capacity() int { return (len(m.data) - tinyHeaderSize) / m.stride }

func (m *TinyMap) slot(i int) []byte {
	off := tinyHeaderSize + i*m.stride
	return m.data[off: off+m.stride]
}

// Get scans linearly for key.
func (m *TinyMap) Get(key []byte) ([]byte, bool) {
	n := m.Count()
	for i := 0; i < n; i++ {
		s := m.slot(i)
		if s[0] == 1 && bytesEqual(s[1:1+m.keySize], key) {
			return s[1+m.keySize: m.stride], true
		}
	}
	return nil, false
}

// Put appends key if absent and space remains; returns ok=false if full.
func (m *TinyMap) Put(key []byte) (value []byte, existed, ok bool) {
	if v, found := m.Get(key); found {
		return v, true, true
	}
	n := m.Count()
	if n >= m.capacity() {
		return nil, false, false
	}
	s := m.slot(n)
	s[0] = 1
	copy(s[1:1+m.keySize], key)
	putLe16(m.data[0:2], uint16(n+1))
	return s[1+m.keySize: m.stride], false, true
}

// Remove swaps the matching slot with the last live slot and shrinks
// count, avoiding a gap in the packed array.
func (m *TinyMap) Remove(key []byte) bool {
	n := m.Count()
	for i := 0; i < n; i++ {
		s := m.slot(i)
		if s[0] == 1 && bytesEqual(s[1:1+m.keySize], key) {
			last := m.slot(n - 1)
			copy(s, last)
			last[0] = 0
			putLe16(m.data[0:2], uint16(n-1))
			return true
		}
	}
	return false
}
