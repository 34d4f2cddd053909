// Package device implements the pluggable block-addressed backing
// store interface: read/write/sync hooks plus a memory-backed stub that
// is the identity device, and an LZ4 wrapper that compresses at the
// Sync boundary.
package device

import "io"

// Device is the pluggable backing store every persistent structure in
// this repo (semantic.Namespace snapshots, bucket pages, avl16/kvmap
// blocks) is ultimately written through. Offsets are absolute byte
// offsets into the device's address space; iov mirrors the original's
// scatter/gather `iov[]` parameter as a slice of byte slices.
type Device interface {
	// Read fills iov starting at offset, returning the total bytes read.
	Read(offset int64, iov [][]byte) (int, error)
	// Write stores iov starting at offset, returning the total bytes
	// written.
	Write(offset int64, iov [][]byte) (int, error)
	// Sync flushes [offset, offset+length) to stable storage.
	Sync(offset int64, length int64) error
	// Used reports the number of bytes currently allocated.
	Used() int64
	// Free releases [offset, offset+length) back to the device, making
	// it eligible for reuse by a future Write at the same region.
	Free(offset int64, length int64) error
}

// ErrOutOfRange is returned by Read when offset falls beyond Used() and
// the device has no sparse-hole semantics to fall back on.
var ErrOutOfRange = io.ErrUnexpectedEOF
