package avl16

import "encoding/binary"

// COWBlock is the AVL-16-COW variant: adds a (seqid, root,
// dirty, failed) transaction header on top of the plain AVL-16 layout.
// Inserts/removes clone touched nodes into fresh slots, never mutating
// visible nodes; Commit publishes the new root and marks prior-version
// slots eligible for reclamation at/after their death seqid; Abort
// discards the shadow tree without publishing.
//
// Node slot layout:
//
//	[0:2)   left child offset
//	[2:4)   right child offset
//	[4:5)   balance factor (int8)
//	[5:13)  birth seqid (uint64)
//	[13:21) death seqid (uint64, 0 = alive)
//	[21:21+keySize)             key
//	[21+keySize:stride)         value
const cowHeaderSize = 24
const cowNodeFixed = 21

type COWBlock struct {
	data    []byte
	keySize int
	valSize int
	stride  int
}

func cowLe64(b []byte) uint64       { return binary.LittleEndian.Uint64(b) }
func cowPutLe64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// InitCOW formats block as an AVL-16-COW index. The first committed seqid
// is 1 (seqid 0 means "no txn has ever touched this node").
func InitCOW(block []byte, keySize, valSize int) *COWBlock {
	if len(block) < cowHeaderSize {
		panic("avl16: cow block smaller than header")
	}
	stride := cowNodeFixed + keySize + valSize
	b := &COWBlock{data: block, keySize: keySize, valSize: valSize, stride: stride}
	b.setRoot(nullOffset)
	b.setFreeHead(nullOffset)
	b.setBump(cowHeaderSize)
	b.setNextSeqid(1)
	putLe16(block[16:18], uint16(stride))
	block[18] = byte(keySize)
	block[19] = byte(valSize)
	return b
}

func (b *COWBlock) root() uint16         { return le16(b.data[0:2]) }
func (b *COWBlock) setRoot(o uint16)     { putLe16(b.data[0:2], o) }
func (b *COWBlock) freeHead() uint16     { return le16(b.data[2:4]) }
func (b *COWBlock) setFreeHead(o uint16) { putLe16(b.data[2:4], o) }
func (b *COWBlock) bump() uint16         { return le16(b.data[4:6]) }
func (b *COWBlock) setBump(o uint16)     { putLe16(b.data[4:6], o) }
func (b *COWBlock) nextSeqid() uint64    { return cowLe64(b.data[8:16]) }
func (b *COWBlock) setNextSeqid(v uint64) { cowPutLe64(b.data[8:16], v) }

func (b *COWBlock) node(o uint16) []byte { return b.data[int(o): int(o)+b.stride] }
func (b *COWBlock) left(o uint16) uint16  { return le16(b.node(o)[0:2]) }
func (b *COWBlock) setLeft(o, v uint16)   { putLe16(b.node(o)[0:2], v) }
func (b *COWBlock) right(o uint16) uint16 { return le16(b.node(o)[2:4]) }
func (b *COWBlock) setRight(o, v uint16)  { putLe16(b.node(o)[2:4], v) }
func (b *COWBlock) birth(o uint16) uint64 { return cowLe64(b.node(o)[5:13]) }
func (b *COWBlock) death(o uint16) uint64 { return cowLe64(b.node(o)[13:21]) }
func (b *COWBlock) setDeath(o uint16, v uint64) { cowPutLe64(b.node(o)[13:21], v) }
func (b *COWBlock) keyAt(o uint16) []byte {
	return b.node(o)[cowNodeFixed: cowNodeFixed+b.keySize]
}
func (b *COWBlock) valueAt(o uint16) []byte {
	return b.node(o)[cowNodeFixed+b.keySize: b.stride]
}

func (b *COWBlock) alloc() (uint16, bool) {
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

func (b *COWBlock) free(o uint16) {
	b.setLeft(o, b.freeHead())
	b.setFreeHead(o)
}

// Oracle answers whether any still-open transaction might observe a node
// born at-or-before `seqid`. The transaction manager (package txn) is expected to
// implement this from its live-transaction low watermark.
type Oracle func(seqid uint64) (observed bool)

// COWTxn is one in-flight copy-on-write transaction against a COWBlock.
type COWTxn struct {
	block     *COWBlock
	seqid     uint64
	baseRoot  uint16
	shadow    uint16
	allocated []uint16 // every slot freshly allocated by this txn (for Abort)
	replaced  []uint16 // old slots this txn's commit should mark dead
	dirty     bool
	failed    bool
}

// TxnOpen snapshots the current root.
func (b *COWBlock) TxnOpen() *COWTxn {
	seqid := b.nextSeqid()
	b.setNextSeqid(seqid + 1)
	root := b.root()
	return &COWTxn{block: b, seqid: seqid, baseRoot: root, shadow: root}
}

func (t *COWTxn) clone(o uint16) uint16 {
	slot, ok := t.block.alloc()
	if !ok {
		t.failed = true
		return nullOffset
	}
	copy(t.block.node(slot), t.block.node(o))
	cowPutLe64(t.block.node(slot)[5:13], t.seqid)
	t.block.setDeath(slot, 0)
	t.allocated = append(t.allocated, slot)
	t.replaced = append(t.replaced, o)
	return slot
}

// Insert clones the path to the insertion point and returns the fresh
// slot's value bytes to populate, or existed=true if key is already
// present in the txn's view.
func (t *COWTxn) Insert(cmp Cmp, key []byte) (value []byte, existed, ok bool) {
	if t.failed {
		return nil, false, false
	}
	newRoot, slot, existedSlot, okIns := t.insert(t.shadow, cmp, key)
	if !okIns {
		t.failed = true
		return nil, false, false
	}
	t.shadow = newRoot
	t.dirty = true
	if existedSlot {
		return t.block.valueAt(slot), true, true
	}
	return t.block.valueAt(slot), false, true
}

func (t *COWTxn) insert(o uint16, cmp Cmp, key []byte) (uint16, uint16, bool, bool) {
	b := t.block
	if o == nullOffset {
		slot, ok := b.alloc()
		if !ok {
			return nullOffset, nullOffset, false, false
		}
		b.setLeft(slot, nullOffset)
		b.setRight(slot, nullOffset)
		b.node(slot)[4] = 0
		cowPutLe64(b.node(slot)[5:13], t.seqid)
		b.setDeath(slot, 0)
		copy(b.keyAt(slot), key)
		t.allocated = append(t.allocated, slot)
		return slot, slot, false, true
	}
	c := cmp(key, b.keyAt(o))
	if c == 0 {
		// Already visible in this txn's view: if it's one of our own
		// allocations we can mutate in place, otherwise clone it.
		if b.birth(o) == t.seqid {
			return o, o, true, true
		}
		slot := t.clone(o)
		if slot == nullOffset {
			return o, nullOffset, false, false
		}
		return slot, slot, true, true
	}
	if c < 0 {
		child := b.left(o)
		newChild, slot, existed, ok := t.insert(child, cmp, key)
		if !ok {
			return o, nullOffset, false, false
		}
		parent := t.ensureOwned(o)
		if parent == nullOffset {
			return o, nullOffset, false, false
		}
		b.setLeft(parent, newChild)
		return t.rebalance(parent), slot, existed, true
	}
	child := b.right(o)
	newChild, slot, existed, ok := t.insert(child, cmp, key)
	if !ok {
		return o, nullOffset, false, false
	}
	parent := t.ensureOwned(o)
	if parent == nullOffset {
		return o, nullOffset, false, false
	}
	b.setRight(parent, newChild)
	return t.rebalance(parent), slot, existed, true
}

// ensureOwned returns o itself if this txn already owns it (born in this
// seqid), otherwise clones it so it can be mutated without touching the
// version other observers still see.
func (t *COWTxn) ensureOwned(o uint16) uint16 {
	if t.block.birth(o) == t.seqid {
		return o
	}
	return t.clone(o)
}

func (t *COWTxn) height(o uint16, depth int) int {
	if o == nullOffset || depth > 64 {
		return 0
	}
	lh := t.height(t.block.left(o), depth+1)
	rh := t.height(t.block.right(o), depth+1)
	if lh > rh {
		return lh + 1
	}
	return rh + 1
}

func (t *COWTxn) rebalance(o uint16) uint16 {
	b := t.block
	lh := t.height(b.left(o), 0)
	rh := t.height(b.right(o), 0)
	bal := lh - rh
	b.node(o)[4] = byte(int8(bal))
	if bal > 1 {
		l := t.ensureOwned(b.left(o))
		if t.height(b.left(l), 0) < t.height(b.right(l), 0) {
			b.setLeft(o, t.rotateLeft(l))
		} else {
			b.setLeft(o, l)
		}
		return t.rotateRight(o)
	}
	if bal < -1 {
		r := t.ensureOwned(b.right(o))
		if t.height(b.right(r), 0) < t.height(b.left(r), 0) {
			b.setRight(o, t.rotateRight(r))
		} else {
			b.setRight(o, r)
		}
		return t.rotateLeft(o)
	}
	return o
}

func (t *COWTxn) rotateLeft(o uint16) uint16 {
	b := t.block
	r := t.ensureOwned(b.right(o))
	b.setRight(o, b.left(r))
	b.setLeft(r, o)
	return r
}

func (t *COWTxn) rotateRight(o uint16) uint16 {
	b := t.block
	l := t.ensureOwned(b.left(o))
	b.setLeft(o, b.right(l))
	b.setRight(l, o)
	return l
}

// Lookup reads through the txn's shadow root, so a txn sees its own
// uncommitted writes.
func (t *COWTxn) Lookup(cmp Cmp, key []byte) ([]byte, bool) {
	return t.block.lookupFrom(t.shadow, cmp, key)
}

func (b *COWBlock) lookupFrom(root uint16, cmp Cmp, key []byte) ([]byte, bool) {
	o := root
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

// Lookup against the currently published (committed) root, what any
// reader opening a fresh txn at the current seqid would see.
func (b *COWBlock) Lookup(cmp Cmp, key []byte) ([]byte, bool) {
	return b.lookupFrom(b.root(), cmp, key)
}

// Commit publishes the shadow root and stamps every replaced slot's death
// at this txn's seqid, then clears transaction
// state. Commit is a no-op (returns false) if the txn already failed.
func (t *COWTxn) Commit() bool {
	if t.failed {
		return false
	}
	for _, o := range t.replaced {
		t.block.setDeath(o, t.seqid)
	}
	t.block.setRoot(t.shadow)
	return true
}

// Abort discards the shadow tree without publishing: every slot this txn
// allocated (original inserts and clones alike) is returned to the free
// list, and no previously-visible node's death stamp is ever set, so the
// published tree is exactly what it was before TxnOpen. The block bytes
// are not restored: the next-seqid counter stays advanced, the free list
// and bump pointer reflect the slots this txn took, and freed slots keep
// their written contents.
func (t *COWTxn) Abort() {
	for _, o := range t.allocated {
		t.block.free(o)
	}
	t.allocated = nil
	t.replaced = nil
}

// Clean garbage-collects slots whose death stamp is non-zero, <= seqid,
// and which `observed` reports no live transaction still needs.
func (b *COWBlock) Clean(seqid uint64, observed Oracle) (reclaimed int) {
	// A from-scratch walk of the whole node area: visit every allocated
	// slot (bump-reachable range) rather than just the live tree, since
	// dead-but-unreclaimed nodes aren't reachable from root.
	for o := uint16(cowHeaderSize); o < b.bump(); o += uint16(b.stride) {
		d := b.death(o)
		if d != 0 && d <= seqid && !observed(d) {
			b.free(o)
			reclaimed++
		}
	}
	return reclaimed
}
