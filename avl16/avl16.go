// Package avl16 implements the in-place AVL-16 index: a balanced BST
// whose nodes live inside a fixed byte block of up to 64 KiB, addressed
// by 16-bit offsets.
//
// A node slot is laid out as:
//
//	[0:2)                left child offset  (nullOffset = no child)
//	[2:4)                right child offset
//	[4:5)                balance factor (int8, in {-1,0,1})
//	[5:5+keySize)        key bytes
//	[5+keySize:stride)   value bytes
//
// The block header occupies the first headerSize bytes, so offset 0 can
// never collide with a real node and doubles as the null sentinel.
package avl16

import "encoding/binary"

const (
	headerSize = 12
	nullOffset = 0
)

// Cmp compares two keys, returning <0, 0, >0 like bytes.Compare.
type Cmp func(a, b []byte) int

// Block is an AVL-16 index formatted into a caller-owned byte slice.
type Block struct {
	data     []byte
	keySize  int
	valSize  int
	stride   int
}

func le16(b []byte) uint16        { return binary.LittleEndian.Uint16(b) }
func putLe16(b []byte, v uint16)  { binary.LittleEndian.PutUint16(b, v) }

// Init formats block for keys of exactly keySize bytes and values of
// exactly valSize bytes. len(block) bounds the number of nodes the index can
// ever hold; Init panics if the block is too small to hold the header.
func Init(block []byte, keySize, valSize int) *Block {
	if len(block) < headerSize {
		panic("avl16: block smaller than header")
	}
	stride := 5 + keySize + valSize
	b := &Block{data: block, keySize: keySize, valSize: valSize, stride: stride}
	b.setRoot(nullOffset)
	b.setFreeHead(nullOffset)
	b.setBump(headerSize)
	putLe16(block[6:8], uint16(stride))
	block[8] = byte(keySize)
	block[9] = byte(valSize)
	return b
}

// Open reattaches to a block previously formatted by Init (e.g. after
// reloading from a device), reading stride/keySize/valSize from the header.
func Open(block []byte) *Block {
	stride := int(le16(block[6:8]))
	keySize := int(block[8])
	valSize := int(block[9])
	return &Block{data: block, keySize: keySize, valSize: valSize, stride: stride}
}

func (b *Block) root() uint16          { return le16(b.data[0:2]) }
func (b *Block) setRoot(o uint16)      { putLe16(b.data[0:2], o) }
func (b *Block) freeHead() uint16      { return le16(b.data[2:4]) }
func (b *Block) setFreeHead(o uint16)  { putLe16(b.data[2:4], o) }
func (b *Block) bump() uint16          { return le16(b.data[4:6]) }
func (b *Block) setBump(o uint16)      { putLe16(b.data[4:6], o) }

func (b *Block) left(o uint16) uint16       { return le16(b.node(o)[0:2]) }
func (b *Block) setLeft(o, v uint16)        { putLe16(b.node(o)[0:2], v) }
func (b *Block) right(o uint16) uint16      { return le16(b.node(o)[2:4]) }
func (b *Block) setRight(o, v uint16)       { putLe16(b.node(o)[2:4], v) }
func (b *Block) balance(o uint16) int8      { return int8(b.node(o)[4]) }
func (b *Block) setBalance(o uint16, v int8) { b.node(o)[4] = byte(v) }
func (b *Block) keyAt(o uint16) []byte      { return b.node(o)[5: 5+b.keySize] }
func (b *Block) valueAt(o uint16) []byte    { return b.node(o)[5+b.keySize: b.stride] }

func (b *Block) node(o uint16) []byte {
	return b.data[int(o): int(o)+b.stride]
}

// append reserves the next free slot (from the free list if non-empty,
// otherwise by bumping the allocation pointer) without linking it into the
// tree. Its caller, insert, populates the slot's key/value and links it.
func (b *Block) append() (uint16, bool) {
	if fh := b.freeHead(); fh != nullOffset {
		next := b.left(fh)
		b.setFreeHead(next)
		return fh, true
	}
	bump := b.bump()
	if int(bump)+b.stride > len(b.data) {
		return 0, false
	}
	b.setBump(bump + uint16(b.stride))
	return bump, true
}

func (b *Block) free(o uint16) {
	b.setLeft(o, b.freeHead())
	b.setFreeHead(o)
}

// KeySize/ValueSize expose the fixed slot geometry.
func (b *Block) KeySize() int { return b.keySize }
func (b *Block) ValueSize() int { return b.valSize }

// Lookup performs a standard AVL lookup, returning the
// matching node's value bytes.
func (b *Block) Lookup(cmp Cmp, key []byte) (value []byte, found bool) {
	o := b.root()
	for o != nullOffset {
		c := cmp(key, b.keyAt(o))
		switch {
		case c == 0:
			return b.valueAt(o), true
		case c < 0:
			o = b.left(o)
		default:
			o = b.right(o)
		}
	}
	return nil, false
}

// Insert performs an ordered insert: if key is already
// present, it returns that slot's value bytes and existed=true without
// modifying the tree. Otherwise it allocates, links, rebalances, and
// returns the fresh slot's (zeroed) value bytes for the caller to populate.
func (b *Block) Insert(cmp Cmp, key []byte) (value []byte, existed, ok bool) {
	if len(key) != b.keySize {
		panic("avl16: key size mismatch")
	}
	newRoot, slot, existedSlot, inserted := b.insert(b.root(), nullOffset, cmp, key)
	if !inserted && slot == nullOffset {
		return nil, false, false
	}
	b.setRoot(newRoot)
	if existedSlot {
		return b.valueAt(slot), true, true
	}
	return b.valueAt(slot), false, true
}

// insert returns (new subtree root, slot offset touched, existed, ok).
func (b *Block) insert(o, _ uint16, cmp Cmp, key []byte) (uint16, uint16, bool, bool) {
	if o == nullOffset {
		slot, ok := b.append()
		if !ok {
			return nullOffset, nullOffset, false, false
		}
		b.setLeft(slot, nullOffset)
		b.setRight(slot, nullOffset)
		b.setBalance(slot, 0)
		copy(b.keyAt(slot), key)
		for i := range b.valueAt(slot) {
			b.valueAt(slot)[i] = 0
		}
		return slot, slot, false, true
	}
	c := cmp(key, b.keyAt(o))
	if c == 0 {
		return o, o, true, true
	}
	if c < 0 {
		newChild, slot, existed, ok := b.insert(b.left(o), o, cmp, key)
		if !ok {
			return o, nullOffset, false, false
		}
		b.setLeft(o, newChild)
		if existed {
			return o, slot, true, true
		}
		return b.rebalance(o), slot, false, true
	}
	newChild, slot, existed, ok := b.insert(b.right(o), o, cmp, key)
	if !ok {
		return o, nullOffset, false, false
	}
	b.setRight(o, newChild)
	if existed {
		return o, slot, true, true
	}
	return b.rebalance(o), slot, false, true
}

// Remove unlinks the node matching key, rebalancing up.
func (b *Block) Remove(cmp Cmp, key []byte) bool {
	newRoot, removed := b.remove(b.root(), cmp, key)
	if !removed {
		return false
	}
	b.setRoot(newRoot)
	return true
}

func (b *Block) remove(o uint16, cmp Cmp, key []byte) (uint16, bool) {
	if o == nullOffset {
		return nullOffset, false
	}
	c := cmp(key, b.keyAt(o))
	switch {
	case c < 0:
		newChild, removed := b.remove(b.left(o), cmp, key)
		if !removed {
			return o, false
		}
		b.setLeft(o, newChild)
		return b.rebalance(o), true
	case c > 0:
		newChild, removed := b.remove(b.right(o), cmp, key)
		if !removed {
			return o, false
		}
		b.setRight(o, newChild)
		return b.rebalance(o), true
	default:
		left, right := b.left(o), b.right(o)
		if left == nullOffset {
			b.free(o)
			return right, true
		}
		if right == nullOffset {
			b.free(o)
			return left, true
		}
		// Replace with the in-order successor (min of right subtree).
		succParent := o
		succ := right
		for b.left(succ) != nullOffset {
			succParent = succ
			succ = b.left(succ)
		}
		copy(b.keyAt(o), b.keyAt(succ))
		copy(b.valueAt(o), b.valueAt(succ))
		if succParent == o {
			newRight, _ := b.remove(right, cmp, b.keyAt(succ))
			b.setRight(o, newRight)
		} else {
			newLeft, _ := b.remove(b.left(succParent), cmp, b.keyAt(succ))
			b.setLeft(succParent, newLeft)
		}
		return b.rebalance(o), true
	}
}

func height(b *Block, o uint16, depth int) int {
	if o == nullOffset || depth > 64 {
		return 0
	}
	lh := height(b, b.left(o), depth+1)
	rh := height(b, b.right(o), depth+1)
	if lh > rh {
		return lh + 1
	}
	return rh + 1
}

func (b *Block) rebalance(o uint16) uint16 {
	lh := height(b, b.left(o), 0)
	rh := height(b, b.right(o), 0)
	balance := lh - rh
	b.setBalance(o, int8(balance))

	if balance > 1 {
		l := b.left(o)
		if height(b, b.left(l), 0) < height(b, b.right(l), 0) {
			b.setLeft(o, b.rotateLeft(l))
		}
		return b.rotateRight(o)
	}
	if balance < -1 {
		r := b.right(o)
		if height(b, b.right(r), 0) < height(b, b.left(r), 0) {
			b.setRight(o, b.rotateRight(r))
		}
		return b.rotateLeft(o)
	}
	return o
}

func (b *Block) rotateLeft(o uint16) uint16 {
	r := b.right(o)
	b.setRight(o, b.left(r))
	b.setLeft(r, o)
	b.setBalance(o, int8(height(b, b.left(o), 0)-height(b, b.right(o), 0)))
	b.setBalance(r, int8(height(b, b.left(r), 0)-height(b, b.right(r), 0)))
	return r
}

func (b *Block) rotateRight(o uint16) uint16 {
	l := b.left(o)
	b.setLeft(o, b.right(l))
	b.setRight(l, o)
	b.setBalance(o, int8(height(b, b.left(o), 0)-height(b, b.right(o), 0)))
	b.setBalance(l, int8(height(b, b.left(l), 0)-height(b, b.right(l), 0)))
	return l
}
