package txn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/raleighsl/fs/errs"
	"github.com/stretchr/testify/require"
)

func TestCreateAcquireRelease(t *testing.T) {
	m := NewManager()
	tx := m.Create()
	require.Equal(t, StateOpen, tx.State())

	got, errno := m.Acquire(tx.ID)
	require.Equal(t, errs.None, errno)
	require.Same(t, tx, got)

	m.Release(got) // drops the Acquire ref, tx still open with its own ref
	require.Equal(t, StateOpen, tx.State())
}

func TestAcquireUnknownIDReturnsNotFound(t *testing.T) {
	m := NewManager()
	_, errno := m.Acquire(999)
	require.ErrorIs(t, errno, errs.TxnNotFound)
}

func TestRollbackUndoesAtomsInReverseOrder(t *testing.T) {
	m := NewManager()
	tx := m.Create()

	var order []int
	require.Equal(t, errs.None, tx.Add(1, Atom{Undo: func() { order = append(order, 1) }, Label: "a"}))
	require.Equal(t, errs.None, tx.Add(1, Atom{Undo: func() { order = append(order, 2) }, Label: "b"}))
	require.Equal(t, errs.None, tx.Add(1, Atom{Undo: func() { order = append(order, 3) }, Label: "c"}))

	tx.Rollback()
	require.Equal(t, []int{3, 2, 1}, order)
	require.Equal(t, StateClosed, tx.State())
}

func TestCommitDropsAtomsAndStaysImmutable(t *testing.T) {
	m := NewManager()
	tx := m.Create()
	ran := false
	require.Equal(t, errs.None, tx.Add(1, Atom{Undo: func() { ran = true }}))
	tx.Commit()
	require.Equal(t, StateCommitted, tx.State())

	tx.Rollback() // no-op on a committed txn
	require.False(t, ran)
}

func TestOperationAfterCloseReturnsTxnClosed(t *testing.T) {
	m := NewManager()
	tx := m.Create()
	tx.Commit()
	require.Equal(t, errs.TxnClosed, tx.Add(1, Atom{}))
}

func TestLockKeyConflictsAcrossTransactions(t *testing.T) {
	m := NewManager()
	t1 := m.Create()
	t2 := m.Create()

	require.Equal(t, errs.None, m.LockKey(t1, 42, "k"))
	require.Equal(t, errs.TxnLockedKey, m.LockKey(t2, 42, "k"))
	// Same txn re-locking the same key is idempotent.
	require.Equal(t, errs.None, m.LockKey(t1, 42, "k"))

	t1.Commit()
	m.Release(t1)

	// Releasing t1 frees the lock for t2.
	require.Equal(t, errs.None, m.LockKey(t2, 42, "k"))
}

func TestLockOperationConflictsAcrossTransactions(t *testing.T) {
	m := NewManager()
	t1 := m.Create()
	t2 := m.Create()

	require.Equal(t, errs.None, m.LockOperation(t1, 7, "sset:structural"))
	require.Equal(t, errs.TxnLockedOperation, m.LockOperation(t2, 7, "sset:structural"))
}

func TestLowWatermarkTracksOldestLiveTxn(t *testing.T) {
	m := NewManager()
	t1 := m.Create()
	t2 := m.Create()
	require.Equal(t, t1.ID, m.LowWatermark())

	t1.Commit()
	m.Release(t1)
	require.Equal(t, t2.ID, m.LowWatermark())
}

// TestLockKeyIsolatedAcrossDistinctKeyNames generates distinct fixture key
// names with uuid.NewString so each subtest's LockKey calls can never
// collide with another's, instead of hand-picking string literals that
// would need to stay manually unique as the table grows.
func TestLockKeyIsolatedAcrossDistinctKeyNames(t *testing.T) {
	m := NewManager()
	t1 := m.Create()
	t2 := m.Create()

	keyA := uuid.NewString()
	keyB := uuid.NewString()
	require.NotEqual(t, keyA, keyB)

	require.Equal(t, errs.None, m.LockKey(t1, 1, keyA))
	require.Equal(t, errs.None, m.LockKey(t2, 1, keyB))
	require.Equal(t, errs.TxnLockedKey, m.LockKey(t2, 1, keyA))
}
