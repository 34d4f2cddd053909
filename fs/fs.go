// Package fs wires the semantic namespace, object cache, plugin
// registry, transaction manager, and eloop runtime behind the single
// handle the rest of the system revolves around.
package fs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raleighsl/fs/cache"
	"github.com/raleighsl/fs/device"
	"github.com/raleighsl/fs/eloop"
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/rcfg"
	"github.com/raleighsl/fs/semantic"
	"github.com/raleighsl/fs/txn"
	"github.com/raleighsl/fs/vtask"
)

// FS is one open RaleighSL/FS instance: a semantic namespace, object
// cache, plugin registry, transaction manager, and the eloop Context
// that actually runs every dispatch. A dispatch is scheduled onto the
// worker owning the target object rather than run inline on the
// caller's goroutine.
type FS struct {
	Dispatcher *object.Dispatcher
	Ctx        *eloop.Context
	Conf       *rcfg.Config
	Dev        device.Device
}

// DefaultCacheCapacity is the soft object-cache capacity used when the
// caller doesn't need to tune it; the cache size knob lives at the
// fs-open call site, not in the shared worker/arena config.
const DefaultCacheCapacity = 4096

// Open constructs an FS over a fresh namespace/cache/registry/txn
// manager and starts its eloop Context, spawning one pinned worker per
// configured core. promReg may be nil to skip prometheus
// registration (e.g. in tests). dev is the backing store for
// Sync/restore; a nil dev leaves the fs purely in-memory, and a dev
// that already holds a checkpoint is restored from before Open returns.
func Open(conf *rcfg.Config, registry *object.Registry, cacheCapacity int, promReg prometheus.Registerer, dev device.Device) (*FS, error) {
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	ctx, err := eloop.ContextOpen(conf, promReg)
	if err != nil {
		return nil, err
	}
	d := object.NewDispatcher(
		semantic.New(),
		cache.New(cacheCapacity, cache.NewLRU, promReg),
		registry,
		txn.NewManager(),
	)
	fs := &FS{Dispatcher: d, Ctx: ctx, Conf: conf, Dev: dev}
	if dev != nil && dev.Used() > 0 {
		if errno := fs.loadCheckpoint(); errno != errs.None {
			fs.Close()
			return nil, errno
		}
	}
	return fs, nil
}

// Close stops and joins every eloop worker.
func (fs *FS) Close() {
	fs.Ctx.Stop()
	fs.Ctx.Close()
}

// ownerCore picks the worker that owns oid: a stable hash of the oid
// rather than tracked migration state, since this fs never needs an
// object to hop workers once assigned.
func (fs *FS) ownerCore(oid uint64) int {
	if n := fs.Ctx.NCores(); n > 1 {
		return int(oid % uint64(n))
	}
	return 0
}

// execResult carries an Execute call's outcome from the worker
// goroutine that ran it back to the calling goroutine.
type execResult struct {
	resp  []byte
	errno errs.Errno
}

// runOnOwner posts fn to the worker owning oid (or core 0 if oid is
// unknown, e.g. CREATE) and blocks for its result: the single place
// every fs-level entry point crosses from the caller's goroutine onto
// the eloop Context.
func (fs *FS) runOnOwner(oid uint64, fn func() ([]byte, errs.Errno)) ([]byte, errs.Errno) {
	done := make(chan execResult, 1)
	err := fs.Ctx.PostTo(0, fs.ownerCore(oid), 128, func(*vtask.VTask) {
		resp, errno := fn()
		done <- execResult{resp: resp, errno: errno}
	})
	if err != nil {
		return nil, errs.NoMemory
	}
	r := <-done
	return r.resp, r.errno
}

// Execute is the fs-wide entry point: resolve name -> oid first (so
// the call can be scheduled on its owning worker), then run the full
// dispatch on that worker.
func (fs *FS) Execute(op uint32, name string, txID uint64, req []byte) ([]byte, errs.Errno) {
	oid, _, errno := fs.Dispatcher.NS.Open(name)
	if errno != errs.None {
		oid = 0
	}
	return fs.runOnOwner(oid, func() ([]byte, errs.Errno) {
		return fs.Dispatcher.Execute(op, name, txID, req)
	})
}

// CreateObject allocates a name and initializes it through its
// plugin. Creation needs no owner affinity since
// the object doesn't exist yet; it runs on core 0.
func (fs *FS) CreateObject(name, typeName string) (uint64, errs.Errno) {
	done := make(chan execResult, 1)
	err := fs.Ctx.PostTo(0, 0, 128, func(*vtask.VTask) {
		oid, errno := fs.Dispatcher.CreateObject(name, typeName)
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(oid >> (8 * i))
		}
		done <- execResult{resp: buf, errno: errno}
	})
	if err != nil {
		return 0, errs.NoMemory
	}
	r := <-done
	var oid uint64
	for i := 0; i < 8; i++ {
		oid |= uint64(r.resp[i]) << (8 * i)
	}
	return oid, r.errno
}

// Unlink removes name.
func (fs *FS) Unlink(name string) errs.Errno {
	oid, _, errno := fs.Dispatcher.NS.Open(name)
	if errno != errs.None {
		oid = 0
	}
	_, errno = fs.runOnOwner(oid, func() ([]byte, errs.Errno) {
		return nil, fs.Dispatcher.Unlink(name)
	})
	return errno
}

// Rename implements the semantic RENAME op.
func (fs *FS) Rename(oldName, newName string) errs.Errno {
	return fs.Dispatcher.Rename(oldName, newName)
}
