// Package bucket implements the fixed-size, variable-key bucket page:
// header, sorted offset index, and a heap of key/value bytes grown from
// the tail. Deletes tombstone the index; Compact rebuilds the heap.
package bucket

import (
	"bytes"
	"encoding/binary"

	"github.com/raleighsl/fs/rsum"
)

// Header layout (little-endian), fixed at headerSize bytes:
//
//	[0:2)   magic
//	[2:4)   level
//	[4:8)   count (uint32)
//	[8:12)  free offset: end of the index array / start of free space
//	[12:16) tail offset: start of the heap (entries grow downward from
//	        the end of the page toward freeOffset)
//	[16:20) checksum (CRC32C over header+index+heap at finalize time)
const headerSize = 20

// indexEntrySize is (offset uint32, keyPrefix uint32, deleted flag packed
// into the high bit of offset) per sorted-index slot.
const indexEntrySize = 8

const deletedBit = uint32(1) << 31

// Entry is one (key, value) pair as seen by iteration, along with its
// key prefix, index position, and tombstone flag.
type Entry struct {
	Key       []byte
	Value     []byte
	KPrefix   uint32
	Index     uint32
	IsDeleted bool
}

// Bucket wraps a caller-owned fixed-size page.
type Bucket struct {
	data []byte
}

func le32(b []byte) uint32       { return binary.LittleEndian.Uint32(b) }
func putLe32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func le16(b []byte) uint16       { return binary.LittleEndian.Uint16(b) }
func putLe16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// Create formats an empty bucket with the given magic/level.
func Create(page []byte, magic, level uint16) *Bucket {
	if len(page) < headerSize {
		panic("bucket: page smaller than header")
	}
	b := &Bucket{data: page}
	putLe16(page[0:2], magic)
	putLe16(page[2:4], level)
	putLe32(page[4:8], 0)
	putLe32(page[8:12], headerSize)
	putLe32(page[12:16], uint32(len(page)))
	putLe32(page[16:20], 0)
	return b
}

// Open reattaches to a previously created/finalized page without
// resetting it.
func Open(page []byte, magic uint16) (*Bucket, bool) {
	if len(page) < headerSize || le16(page[0:2]) != magic {
		return nil, false
	}
	return &Bucket{data: page}, true
}

func (b *Bucket) Magic() uint16 { return le16(b.data[0:2]) }
func (b *Bucket) Level() uint16 { return le16(b.data[2:4]) }
func (b *Bucket) Count() uint32 { return le32(b.data[4:8]) }
func (b *Bucket) freeOffset() uint32     { return le32(b.data[8:12]) }
func (b *Bucket) setFreeOffset(v uint32) { putLe32(b.data[8:12], v) }
func (b *Bucket) tailOffset() uint32     { return le32(b.data[12:16]) }
func (b *Bucket) setTailOffset(v uint32) { putLe32(b.data[12:16], v) }

func (b *Bucket) indexSlot(i uint32) []byte {
	off := headerSize + int(i)*indexEntrySize
	return b.data[off: off+indexEntrySize]
}

func (b *Bucket) entryOffsetAt(i uint32) (uint32, bool) {
	slot := b.indexSlot(i)
	raw := le32(slot[0:4])
	deleted := raw&deletedBit != 0
	return raw &^ deletedBit, deleted
}

func (b *Bucket) setEntryOffsetAt(i uint32, off uint32, deleted bool) {
	slot := b.indexSlot(i)
	v := off
	if deleted {
		v |= deletedBit
	}
	putLe32(slot[0:4], v)
}

func (b *Bucket) kprefixAt(i uint32) uint32 { return le32(b.indexSlot(i)[4:8]) }

// readEntryAt decodes the tag-and-bytes record stored at a heap offset:
// [klen u32][vlen u32][key bytes][value bytes].
func (b *Bucket) readEntryAt(off uint32) (key, value []byte) {
	klen := le32(b.data[off: off+4])
	vlen := le32(b.data[off+4: off+8])
	base := off + 8
	key = b.data[base: base+klen]
	value = b.data[base+klen: base+klen+vlen]
	return
}

func kprefixOf(key []byte) uint32 {
	var buf [4]byte
	copy(buf[:], key)
	return binary.BigEndian.Uint32(buf[:])
}

// Available reports remaining space between the index growth edge and the
// heap growth edge.
func (b *Bucket) Available() uint32 {
	indexEnd := headerSize + b.Count()*indexEntrySize
	tail := b.tailOffset()
	if tail < indexEnd {
		return 0
	}
	return tail - indexEnd
}

// recordSize is the heap footprint of one (key,value) entry.
func recordSize(keyLen, valLen int) uint32 {
	return 8 + uint32(keyLen) + uint32(valLen)
}

// HasSpace is the conservative admission check: an entry is appendable
// iff index growth + record bytes <= available.
func (b *Bucket) HasSpace(keyLen, valLen int) bool {
	need := indexEntrySize + recordSize(keyLen, valLen)
	return need <= b.Available()
}

// Append inserts (key, value) keeping the index sorted by key, growing
// the heap from the tail downward. Returns false iff HasSpace would
// have been false, so a positive HasSpace always admits the append.
func (b *Bucket) Append(key, value []byte) bool {
	if !b.HasSpace(len(key), len(value)) {
		return false
	}
	size := recordSize(len(key), len(value))
	newTail := b.tailOffset() - size
	rec := b.data[newTail: newTail+size]
	putLe32(rec[0:4], uint32(len(key)))
	putLe32(rec[4:8], uint32(len(value)))
	copy(rec[8:8+len(key)], key)
	copy(rec[8+len(key):], value)
	b.setTailOffset(newTail)

	count := b.Count()
	pos := b.searchInsertPos(key)
	for i := count; i > pos; i-- {
		copy(b.indexSlot(i), b.indexSlot(i-1))
	}
	slot := b.indexSlot(pos)
	putLe32(slot[0:4], newTail)
	putLe32(slot[4:8], kprefixOf(key))
	b.setFreeOffset(b.freeOffset() + indexEntrySize)
	putLe32(b.data[4:8], count+1)
	return true
}

func (b *Bucket) searchInsertPos(key []byte) uint32 {
	lo, hi := uint32(0), b.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		off, _ := b.entryOffsetAt(mid)
		k, _ := b.readEntryAt(off)
		if bytes.Compare(k, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Search binary-searches the sorted index,
// skipping tombstoned entries.
func (b *Bucket) Search(key []byte) ([]byte, bool) {
	// A key re-appended after a Remove sits beside its tombstone, so scan
	// the whole run of equal keys from the lower bound for a live one.
	for i := b.searchInsertPos(key); i < b.Count(); i++ {
		off, deleted := b.entryOffsetAt(i)
		k, v := b.readEntryAt(off)
		if !bytes.Equal(k, key) {
			break
		}
		if !deleted {
			return v, true
		}
	}
	return nil, false
}

// Remove tombstones the matching index entry in place. Actual reclamation happens at
// Compact.
func (b *Bucket) Remove(key []byte) bool {
	for i := b.searchInsertPos(key); i < b.Count(); i++ {
		off, deleted := b.entryOffsetAt(i)
		k, _ := b.readEntryAt(off)
		if !bytes.Equal(k, key) {
			break
		}
		if !deleted {
			b.setEntryOffsetAt(i, off, true)
			return true
		}
	}
	return false
}

// FetchFirst/FetchNext implement the iterator vtable's skip-tombstone
// contract, addressed by index position.
func (b *Bucket) FetchFirst() (Entry, bool) { return b.fetchAt(0) }

func (b *Bucket) FetchNext(prevIndex uint32) (Entry, bool) { return b.fetchAt(prevIndex + 1) }

func (b *Bucket) fetchAt(i uint32) (Entry, bool) {
	for ; i < b.Count(); i++ {
		off, deleted := b.entryOffsetAt(i)
		if deleted {
			continue
		}
		k, v := b.readEntryAt(off)
		return Entry{Key: k, Value: v, KPrefix: b.kprefixAt(i), Index: i, IsDeleted: false}, true
	}
	return Entry{}, false
}

// Finalize stamps a CRC32C checksum over the page. Call once the bucket is done being written.
func (b *Bucket) Finalize() {
	putLe32(b.data[16:20], 0)
	sum := rsum.CRC32C(b.data)
	putLe32(b.data[16:20], sum)
}

// Verify recomputes and checks the stamped checksum.
func (b *Bucket) Verify() bool {
	want := le32(b.data[16:20])
	saved := make([]byte, 4)
	copy(saved, b.data[16:20])
	putLe32(b.data[16:20], 0)
	got := rsum.CRC32C(b.data)
	copy(b.data[16:20], saved)
	return got == want
}

// Compact rebuilds the heap in sorted order, dropping tombstones. dst must be at least as large as src and may alias a fresh
// page; Compact returns the rebuilt Bucket.
func Compact(dst []byte, src *Bucket, magic, level uint16) *Bucket {
	out := Create(dst, magic, level)
	for e, ok := src.FetchFirst(); ok; e, ok = src.FetchNext(e.Index) {
		if !out.Append(e.Key, e.Value) {
			panic("bucket: compact target too small")
		}
	}
	return out
}
