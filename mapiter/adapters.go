package mapiter

import (
	"github.com/raleighsl/fs/avl16"
	"github.com/raleighsl/fs/bucket"
)

// AVLIterator adapts an avl16.Iterator (forward direction only) to the
// mapiter.Iterator interface so an in-memory index can take part in a
// merge alongside on-disk buckets.
type AVLIterator struct {
	block *avl16.Block
	cmp   avl16.Cmp
	it    *avl16.Iterator
}

func NewAVLIterator(block *avl16.Block, cmp avl16.Cmp) *AVLIterator {
	return &AVLIterator{block: block, cmp: cmp, it: block.Begin()}
}

func (a *AVLIterator) Valid() bool    { return a.it.Valid() }
func (a *AVLIterator) Key() []byte    { return a.it.Key() }
func (a *AVLIterator) Value() []byte  { return a.it.Value() }
func (a *AVLIterator) Next()          { a.it.Next() }
func (a *AVLIterator) Seek(k []byte)  { a.it = a.block.SeekGE(a.cmp, k) }

// BucketIterator adapts a bucket.Bucket's tombstone-skipping
// fetch_first/fetch_next walk to mapiter.Iterator. Buckets are already
// kept in sorted-index order, so no extra sort is needed.
type BucketIterator struct {
	b     *bucket.Bucket
	entry bucket.Entry
	ok    bool
}

func NewBucketIterator(b *bucket.Bucket) *BucketIterator {
	bi := &BucketIterator{b: b}
	bi.entry, bi.ok = b.FetchFirst()
	return bi
}

func (bi *BucketIterator) Valid() bool   { return bi.ok }
func (bi *BucketIterator) Key() []byte   { return bi.entry.Key }
func (bi *BucketIterator) Value() []byte { return bi.entry.Value }
func (bi *BucketIterator) Next()         { bi.entry, bi.ok = bi.b.FetchNext(bi.entry.Index) }

// Seek on a bucket iterator is a linear scan forward from the current
// position: buckets don't expose a direct binary-seek-and-resume cursor,
// only search-by-exact-key, so this walks fetch_next until reaching or
// passing target.
func (bi *BucketIterator) Seek(target []byte) {
	for bi.ok && BytesCmp(bi.entry.Key, target) < 0 {
		bi.Next()
	}
}
