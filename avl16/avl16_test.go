package avl16

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func cmpBytes(a, b []byte) int { return bytes.Compare(a, b) }

func keyOf(n int) []byte {
	return []byte{byte(n >> 8), byte(n)}
}

func collect(b *Block) [][]byte {
	var out [][]byte
	for it := b.Begin(); it.Valid(); it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		out = append(out, k)
	}
	return out
}

// Property 3: after any sequence of insert/remove, in-order
// traversal yields keys in sorted order and contains exactly the set of
// live keys.
func TestInsertRemoveThenOrderedIteration(t *testing.T) {
	block := make([]byte, 64*1024)
	b := Init(block, 2, 4)

	live := map[int]bool{}
	seq := []struct {
		op string
		n  int
	}{
		{"ins", 50}, {"ins", 10}, {"ins", 90}, {"ins", 30}, {"ins", 70},
		{"ins", 20}, {"ins", 40}, {"ins", 60}, {"ins", 80}, {"ins", 5},
		{"rm", 30}, {"rm", 90}, {"ins", 100}, {"ins", 1}, {"rm", 50},
		{"ins", 50}, {"rm", 5}, {"ins", 95},
	}
	for _, s := range seq {
		k := keyOf(s.n)
		switch s.op {
		case "ins":
			v, existed, ok := b.Insert(cmpBytes, k)
			require.True(t, ok)
			if !existed {
				copy(v, []byte{1, 2, 3, 4})
			}
			live[s.n] = true
		case "rm":
			removed := b.Remove(cmpBytes, k)
			require.Equal(t, live[s.n], removed)
			delete(live, s.n)
		}
	}

	var wantNums []int
	for n := range live {
		wantNums = append(wantNums, n)
	}
	sort.Ints(wantNums)

	var want [][]byte
	for _, n := range wantNums {
		want = append(want, keyOf(n))
	}
	got := collect(b)
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.Equal(t, want[i], got[i], "position %d", i)
	}
}

func TestLookupAfterInsert(t *testing.T) {
	block := make([]byte, 4096)
	b := Init(block, 2, 4)
	for _, n := range []int{5, 3, 8, 1, 4, 7, 9} {
		v, existed, ok := b.Insert(cmpBytes, keyOf(n))
		require.True(t, ok)
		require.False(t, existed)
		copy(v, keyOf(n*10))
	}
	v, found := b.Lookup(cmpBytes, keyOf(7))
	require.True(t, found)
	require.Equal(t, keyOf(70), v)

	_, found = b.Lookup(cmpBytes, keyOf(42))
	require.False(t, found)
}

func TestInsertExistingKeyReturnsExisted(t *testing.T) {
	block := make([]byte, 4096)
	b := Init(block, 2, 4)
	v1, existed, ok := b.Insert(cmpBytes, keyOf(5))
	require.True(t, ok)
	require.False(t, existed)
	copy(v1, []byte{9, 9, 9, 9})

	v2, existed, ok := b.Insert(cmpBytes, keyOf(5))
	require.True(t, ok)
	require.True(t, existed)
	require.Equal(t, []byte{9, 9, 9, 9}, v2)
}

func TestSeekGEAndSeekLE(t *testing.T) {
	block := make([]byte, 4096)
	b := Init(block, 2, 4)
	for _, n := range []int{10, 20, 30, 40, 50} {
		_, _, ok := b.Insert(cmpBytes, keyOf(n))
		require.True(t, ok)
	}

	it := b.SeekGE(cmpBytes, keyOf(25))
	require.True(t, it.Valid())
	require.Equal(t, keyOf(30), it.Key())

	it = b.SeekLE(cmpBytes, keyOf(25))
	require.True(t, it.Valid())
	require.Equal(t, keyOf(20), it.Key())

	it = b.SeekGE(cmpBytes, keyOf(100))
	require.False(t, it.Valid())
}

// Property 4: a transaction's writes are invisible to other
// observers until Commit, and an aborted transaction leaves lookups
// against the published root unchanged.
func TestCOWTxnIsolationAndAbort(t *testing.T) {
	block := make([]byte, 64*1024)
	b := InitCOW(block, 2, 4)

	base := b.TxnOpen()
	for _, n := range []int{10, 20, 30} {
		v, _, ok := base.Insert(cmpBytes, keyOf(n))
		require.True(t, ok)
		copy(v, keyOf(n))
	}
	require.True(t, base.Commit())

	txn := b.TxnOpen()
	v, existed, ok := txn.Insert(cmpBytes, keyOf(99))
	require.True(t, ok)
	require.False(t, existed)
	copy(v, keyOf(99))

	// Not yet committed: published root must not see key 99.
	_, found := b.Lookup(cmpBytes, keyOf(99))
	require.False(t, found)
	// But the txn itself sees its own write.
	got, found := txn.Lookup(cmpBytes, keyOf(99))
	require.True(t, found)
	require.Equal(t, keyOf(99), got)

	txn.Abort()
	_, found = b.Lookup(cmpBytes, keyOf(99))
	require.False(t, found)
	for _, n := range []int{10, 20, 30} {
		_, found := b.Lookup(cmpBytes, keyOf(n))
		require.True(t, found)
	}

	txn2 := b.TxnOpen()
	_, _, ok = txn2.Insert(cmpBytes, keyOf(99))
	require.True(t, ok)
	require.True(t, txn2.Commit())
	_, found = b.Lookup(cmpBytes, keyOf(99))
	require.True(t, found)
}

func TestCOWCleanReclaimsDeadSlots(t *testing.T) {
	block := make([]byte, 64*1024)
	b := InitCOW(block, 2, 4)

	txn := b.TxnOpen()
	for _, n := range []int{1, 2, 3, 4, 5} {
		_, _, ok := txn.Insert(cmpBytes, keyOf(n))
		require.True(t, ok)
	}
	require.True(t, txn.Commit())

	txn2 := b.TxnOpen()
	removed := false
	for _, n := range []int{1, 2, 3, 4, 5} {
		v, existed, ok := txn2.Insert(cmpBytes, keyOf(n))
		require.True(t, ok)
		require.True(t, existed)
		_ = v
		removed = true
	}
	require.True(t, removed)
	require.True(t, txn2.Commit())

	noneObserved := func(uint64) bool { return false }
	reclaimed := b.Clean(txn2.seqid, noneObserved)
	require.Greater(t, reclaimed, 0)
}
