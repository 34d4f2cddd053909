// Package txn implements the transaction manager: txn id allocation,
// acquire/release refcounting, per-object atom lists, the key/operation
// lock table, and rollback. The Manager is an explicit value owned by
// the fs handle rather than a hidden global context.
package txn

import (
	"sync"
	"sync/atomic"

	"github.com/raleighsl/fs/errs"
)

// State is a transaction's lifecycle stage.
type State int

const (
	StateOpen State = iota
	StateRollingBack
	StateCommitted
	StateClosed
)

// Atom is an opaque redo/undo record a plugin appends while mutating an
// object. Undo replays the inverse effect during
// rollback; it must be idempotent-safe to call at most once.
type Atom struct {
	Object uint64
	Undo   func()
	Label  string // e.g. "sset:insert k"; diagnostics only.
}

// Txn is one multi-key transaction. atoms is kept in insertion order so
// rollback can undo in reverse.
type Txn struct {
	ID    uint64
	mu    sync.Mutex
	state State
	refs  int32
	atoms []Atom

	lockedKeys map[lockKey]struct{}
	lockedOps  map[lockOp]struct{}
}

type lockKey struct {
	Object uint64
	Key    string
}

type lockOp struct {
	Object uint64
	Op     string
}

func (t *Txn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Add appends an atom to the transaction's undo log.
func (t *Txn) Add(object uint64, a Atom) errs.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return errs.TxnClosed
	}
	a.Object = object
	t.atoms = append(t.atoms, a)
	return errs.None
}

// Replace swaps the most recently added atom for `object` matching
// `label` with `next`, the way compacting redo records does.
func (t *Txn) Replace(object uint64, label string, next Atom) errs.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return errs.TxnClosed
	}
	for i := len(t.atoms) - 1; i >= 0; i-- {
		if t.atoms[i].Object == object && t.atoms[i].Label == label {
			next.Object = object
			t.atoms[i] = next
			return errs.None
		}
	}
	next.Object = object
	t.atoms = append(t.atoms, next)
	return errs.None
}

// Remove cancels the most recently added atom matching (object, label).
func (t *Txn) Remove(object uint64, label string) errs.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return errs.TxnClosed
	}
	for i := len(t.atoms) - 1; i >= 0; i-- {
		if t.atoms[i].Object == object && t.atoms[i].Label == label {
			t.atoms = append(t.atoms[:i], t.atoms[i+1:]...)
			return errs.None
		}
	}
	return errs.None
}

// recordKey notes that this txn holds the per-object key-range lock for
// `key`, for release-on-close. It never fails: conflicts with another
// live transaction are detected by the Manager, which owns the global
// table.
func (t *Txn) recordKey(object uint64, key string) {
	t.mu.Lock()
	if t.lockedKeys == nil {
		t.lockedKeys = map[lockKey]struct{}{}
	}
	t.lockedKeys[lockKey{object, key}] = struct{}{}
	t.mu.Unlock()
}

func (t *Txn) recordOp(object uint64, op string) {
	t.mu.Lock()
	if t.lockedOps == nil {
		t.lockedOps = map[lockOp]struct{}{}
	}
	t.lockedOps[lockOp{object, op}] = struct{}{}
	t.mu.Unlock()
}

// Rollback walks atoms in reverse and undoes each, then transitions
// rolling-back -> closed.
func (t *Txn) Rollback() {
	t.mu.Lock()
	if t.state == StateClosed || t.state == StateCommitted {
		t.mu.Unlock()
		return
	}
	t.state = StateRollingBack
	atoms := t.atoms
	t.atoms = nil
	t.mu.Unlock()

	for i := len(atoms) - 1; i >= 0; i-- {
		if atoms[i].Undo != nil {
			atoms[i].Undo()
		}
	}

	t.mu.Lock()
	t.state = StateClosed
	t.mu.Unlock()
}

// Commit marks the transaction immutable; applied mutations (already
// visible to their objects by the time the dispatch released the
// rwcsem) stay in effect. Atoms are discarded since they are only
// needed for rollback.
func (t *Txn) Commit() {
	t.mu.Lock()
	if t.state == StateOpen {
		t.state = StateCommitted
		t.atoms = nil
	}
	t.mu.Unlock()
}

func (t *Txn) acquire() { atomic.AddInt32(&t.refs, 1) }

// Manager is the live-transaction table plus the global key/operation
// lock table. Exactly one Manager exists per fs instance; its
// LowWatermark backs avl16's COW reclamation oracle.
type Manager struct {
	mu       sync.Mutex
	nextID   uint64
	byID     map[uint64]*Txn
	lockedK  map[lockKey]uint64 // object+key -> owning txn id
	lockedOp map[lockOp]uint64
}

// NewManager constructs an empty transaction table.
func NewManager() *Manager {
	return &Manager{
		byID:     map[uint64]*Txn{},
		lockedK:  map[lockKey]uint64{},
		lockedOp: map[lockOp]uint64{},
	}
}

// Create allocates a fresh txn with a new monotonic id and inserts it into the live-transaction table.
func (m *Manager) Create() *Txn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &Txn{ID: m.nextID, state: StateOpen, refs: 1}
	m.byID[t.ID] = t
	return t
}

// Acquire looks up a live txn by id and bumps its refcount.
func (m *Manager) Acquire(id uint64) (*Txn, errs.Errno) {
	m.mu.Lock()
	t, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return nil, errs.TxnNotFound
	}
	if t.State() == StateRollingBack || t.State() == StateClosed {
		return nil, errs.TxnRolledback
	}
	t.acquire()
	return t, errs.None
}

// Release drops a reference; a transaction becomes reclaimable once
// refs reach zero and its state is terminal.
func (m *Manager) Release(t *Txn) {
	if atomic.AddInt32(&t.refs, -1) > 0 {
		return
	}
	st := t.State()
	if st != StateCommitted && st != StateClosed {
		return
	}
	m.releaseLocks(t)
	m.mu.Lock()
	delete(m.byID, t.ID)
	m.mu.Unlock()
}

// LockKey attempts to register exclusive ownership of (object, key) for
// txn t, failing with TxnLockedKey if a different live txn already holds
// it.
func (m *Manager) LockKey(t *Txn, object uint64, key string) errs.Errno {
	lk := lockKey{object, key}
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, held := m.lockedK[lk]; held && owner != t.ID {
		return errs.TxnLockedKey
	}
	m.lockedK[lk] = t.ID
	t.recordKey(object, key)
	return errs.None
}

// LockOperation is LockKey's sibling for per-object operation-class
// locks (e.g. "sset:structural").
func (m *Manager) LockOperation(t *Txn, object uint64, op string) errs.Errno {
	lo := lockOp{object, op}
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, held := m.lockedOp[lo]; held && owner != t.ID {
		return errs.TxnLockedOperation
	}
	m.lockedOp[lo] = t.ID
	t.recordOp(object, op)
	return errs.None
}

func (m *Manager) releaseLocks(t *Txn) {
	t.mu.Lock()
	keys := t.lockedKeys
	ops := t.lockedOps
	t.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range keys {
		if m.lockedK[k] == t.ID {
			delete(m.lockedK, k)
		}
	}
	for o := range ops {
		if m.lockedOp[o] == t.ID {
			delete(m.lockedOp, o)
		}
	}
}

// LowWatermark reports the smallest txn id still live, i.e. the Oracle
// avl16.COWBlock.Clean needs: no seqid at or after a live txn's
// observation point may be reclaimed. Transactions observe the COW root
// as of their own id here, since txn ids and avl16 seqids are both
// monotonic counters allocated from independent sequences but compared
// only for "is anything still watching", so using the minimum live txn
// id as the watermark is conservative (never reclaims a seqid a live txn
// could be observing) rather than precise.
func (m *Manager) LowWatermark() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	low := uint64(0)
	for id := range m.byID {
		if low == 0 || id < low {
			low = id
		}
	}
	return low
}
