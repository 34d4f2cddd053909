package errs

import "fmt"

// ErrLockedKey is TxnLockedKey plus the key that was contended, so retry
// loops can report which identity they are waiting on.
type ErrLockedKey struct {
	Object uint64
	Key    string
}

func (e *ErrLockedKey) Error() string {
	return fmt.Sprintf("%s: object %d key %q", TxnLockedKey, e.Object, e.Key)
}

func (e *ErrLockedKey) Is(target error) bool { return target == Errno(TxnLockedKey) }
func (e *ErrLockedKey) Unwrap() error        { return TxnLockedKey }

// ErrLockedOperation is TxnLockedOperation plus the operation-class label
// that was already held by another transaction (e.g. "sset:structural").
type ErrLockedOperation struct {
	Object uint64
	Op     string
}

func (e *ErrLockedOperation) Error() string {
	return fmt.Sprintf("%s: object %d op %q", TxnLockedOperation, e.Object, e.Op)
}

func (e *ErrLockedOperation) Is(target error) bool { return target == Errno(TxnLockedOperation) }
func (e *ErrLockedOperation) Unwrap() error         { return TxnLockedOperation }
