// Package object implements the object dispatch core: the typed object
// struct, the plugin registry, and the Execute entry point that
// resolves a name, takes the object's rwcsem in the mode the message
// implies, and routes to a type-specific handler.
package object

import (
	"sync"
	"sync/atomic"

	"github.com/raleighsl/fs/cache"
	"github.com/raleighsl/fs/conc"
	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/semantic"
	"github.com/raleighsl/fs/txn"
	"github.com/raleighsl/fs/wire"
)

// Object is one live persistent object: oid, its type plugin, the
// per-object rwcsem, and the waiter list. Object state is an opaque
// `State` owned by the plugin rather than separate in-memory vs.
// on-device buffer pointers; a non-nil State means the object is open.
type Object struct {
	OID      uint64
	TypeName string
	Plugin   Plugin

	RWC conc.RWCSem

	mu    sync.Mutex
	open  bool
	state any

	waiters []chan struct{}
}

// State returns the plugin-owned payload, nil until Open/Create has run.
func (o *Object) State() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetState installs the plugin-owned payload and marks the object open.
func (o *Object) SetState(s any) {
	o.mu.Lock()
	o.state = s
	o.open = true
	o.mu.Unlock()
}

// IsOpen reports whether the object holds live plugin state.
func (o *Object) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// park registers a waiter and returns a channel that closes when Wake is
// next called.
func (o *Object) park() <-chan struct{} {
	ch := make(chan struct{})
	o.mu.Lock()
	o.waiters = append(o.waiters, ch)
	o.mu.Unlock()
	return ch
}

// Wake releases every parked waiter (the releaser hands each a slot);
// used by callers that manage their own TryAcquire-and-park loop
// instead of RWCSem's blocking Acquire.
func (o *Object) Wake() {
	o.mu.Lock()
	waiters := o.waiters
	o.waiters = nil
	o.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// Plugin is the typed object-type callback table.
// Create/Open/Close/Unlink manage state transitions; Query/Insert/
// Update/Remove/Ioctl execute a message body against an already-open
// object and append atoms to txn (nil for Query, which never mutates).
type Plugin interface {
	TypeName() string

	Create(o *Object) errs.Errno
	Open(o *Object) errs.Errno
	Close(o *Object) errs.Errno
	Sync(o *Object, t *txn.Txn) errs.Errno
	Unlink(o *Object) errs.Errno

	Query(o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno)
	Insert(o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno)
	Update(o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno)
	Remove(o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno)
	Ioctl(o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno)
}

// StateCodec is the optional persistence half of a Plugin: plugins whose
// state survives a sync/restore cycle implement it, and the fs-level
// checkpoint path encodes each open object through it before writing to
// the device. Plugins that don't implement it are
// simply skipped by the checkpointer and come back empty after a
// restore.
type StateCodec interface {
	// EncodeState serializes o's current state to a self-contained image.
	EncodeState(o *Object) ([]byte, errs.Errno)
	// DecodeState rebuilds o's state from an EncodeState image, marking
	// the object open.
	DecodeState(o *Object, image []byte) errs.Errno
}

// Registry is the fs-wide table of object plugins keyed by type label.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry constructs an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: map[string]Plugin{}}
}

// Register installs a plugin under its own TypeName.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.TypeName()] = p
}

// Lookup finds a plugin by type label, failing with PluginNotLoaded if
// absent.
func (r *Registry) Lookup(typeName string) (Plugin, errs.Errno) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[typeName]
	if !ok {
		return nil, errs.PluginNotLoaded
	}
	return p, errs.None
}

// Dispatcher wires the semantic namespace, object cache, plugin
// registry, and transaction manager together behind the single
// Execute(msg) entry point. One Dispatcher exists per
// fs.FS instance.
type Dispatcher struct {
	NS       *semantic.Namespace
	Cache    *cache.Cache
	Registry *Registry
	Txns     *txn.Manager

	// loader, when set, supplies a persisted state image for an oid on
	// its first open after a restore (fs wires it to the checkpoint's
	// extent table over the device). Consulted before Plugin.Open; a
	// miss falls through to the plugin's fresh-state path. Atomic since
	// a checkpoint can swap it while workers are opening objects.
	loader atomic.Pointer[LoaderFunc]
}

// LoaderFunc resolves an oid to its persisted state image, if any.
type LoaderFunc func(oid uint64) ([]byte, bool)

// SetLoader installs (or replaces) the first-open restore hook.
func (d *Dispatcher) SetLoader(fn LoaderFunc) {
	d.loader.Store(&fn)
}

// NewDispatcher wires a fresh Dispatcher over the given namespace,
// cache, registry, and transaction manager.
func NewDispatcher(ns *semantic.Namespace, c *cache.Cache, reg *Registry, txns *txn.Manager) *Dispatcher {
	return &Dispatcher{NS: ns, Cache: c, Registry: reg, Txns: txns}
}

// getObject resolves oid to a live, open *Object via the cache,
// creating/opening it through its plugin on first reference. The caller owns the returned cache.Entry and must
// Release it.
func (d *Dispatcher) getObject(oid uint64, typeName string) (*cache.Entry, *Object, errs.Errno) {
	if entry, ok := d.Cache.TryInsert(oid, nil); ok {
		plug, errno := d.Registry.Lookup(typeName)
		if errno != errs.None {
			d.Cache.Remove(oid)
			d.Cache.Release(entry)
			return nil, nil, errno
		}
		o := &Object{OID: oid, TypeName: typeName, Plugin: plug}
		entry.Value = o
		if errno := d.openObject(o, plug); errno != errs.None {
			d.Cache.Remove(oid)
			d.Cache.Release(entry)
			return nil, nil, errno
		}
		return entry, o, errs.None
	} else {
		o := entry.Value.(*Object)
		return entry, o, errs.None
	}
}

// openObject runs the first-reference open path: a persisted image from
// the Loader takes precedence (restore after a sync), otherwise the
// plugin's own Open hook builds fresh state.
func (d *Dispatcher) openObject(o *Object, plug Plugin) errs.Errno {
	if fn := d.loader.Load(); fn != nil {
		if codec, ok := plug.(StateCodec); ok {
			if image, found := (*fn)(o.OID); found {
				return codec.DecodeState(o, image)
			}
		}
	}
	return plug.Open(o)
}

// CreateObject implements the semantic CREATE op: allocates a new oid,
// binds it in the namespace, and initializes the object through its
// plugin's Create hook.
func (d *Dispatcher) CreateObject(name, typeName string) (uint64, errs.Errno) {
	plug, errno := d.Registry.Lookup(typeName)
	if errno != errs.None {
		return 0, errno
	}
	oid, errno := d.NS.Create(name, typeName)
	if errno != errs.None {
		return 0, errno
	}
	entry, _ := d.Cache.TryInsert(oid, nil)
	o := &Object{OID: oid, TypeName: typeName, Plugin: plug}
	entry.Value = o
	if errno := plug.Create(o); errno != errs.None {
		d.NS.Unlink(name)
		d.Cache.Remove(oid)
		d.Cache.Release(entry)
		return 0, errno
	}
	d.Cache.Release(entry)
	return oid, errs.None
}

// Rename implements the semantic RENAME op.
func (d *Dispatcher) Rename(oldName, newName string) errs.Errno {
	return d.NS.Rename(oldName, newName)
}

// Exists implements the semantic EXISTS op.
func (d *Dispatcher) Exists(name string) bool {
	return d.NS.Exists(name)
}

// Unlink implements the object UNLINK op: resolves the name, takes a
// commit-mode lock on the object (unlink is structural, like sync),
// calls the plugin's Unlink hook, then removes both the namespace
// binding and the cache entry.
func (d *Dispatcher) Unlink(name string) errs.Errno {
	oid, typeName, errno := d.NS.Open(name)
	if errno != errs.None {
		return errno
	}
	entry, o, errno := d.getObject(oid, typeName)
	if errno != errs.None {
		return errno
	}
	defer d.Cache.Release(entry)

	o.RWC.AcquireCommit()
	defer o.RWC.ReleaseCommit()

	if errno := o.Plugin.Unlink(o); errno != errs.None {
		return errno
	}
	if _, errno := d.NS.Unlink(name); errno != errs.None {
		return errno
	}
	d.Cache.Remove(oid)
	return errs.None
}

// SnapshotObject materializes oid's state image for the checkpoint
// path: it takes the object from the cache, acquires commit mode (the
// same exclusion class as sync, which is what a checkpoint is), and
// encodes through the plugin's StateCodec. Plugins without a codec
// yield a nil image and no error.
func (d *Dispatcher) SnapshotObject(oid uint64, typeName string) ([]byte, errs.Errno) {
	plug, errno := d.Registry.Lookup(typeName)
	if errno != errs.None {
		return nil, errno
	}
	codec, ok := plug.(StateCodec)
	if !ok {
		return nil, errs.None
	}
	entry, o, errno := d.getObject(oid, typeName)
	if errno != errs.None {
		return nil, errno
	}
	defer d.Cache.Release(entry)

	o.RWC.AcquireCommit()
	defer o.RWC.ReleaseCommit()
	return codec.EncodeState(o)
}

// Execute is the object-op entry point: resolve name -> oid, take the
// object from the cache, acquire
// the rwcsem in the mode the op implies, dispatch the plugin callback,
// release the lock, drop the cache ref.
func (d *Dispatcher) Execute(op uint32, name string, txID uint64, req []byte) ([]byte, errs.Errno) {
	if op == wire.OpUnlink {
		return nil, d.Unlink(name)
	}

	oid, typeName, errno := d.NS.Open(name)
	if errno != errs.None {
		return nil, errno
	}

	entry, o, errno := d.getObject(oid, typeName)
	if errno != errs.None {
		return nil, errno
	}
	defer d.Cache.Release(entry)

	var t *txn.Txn
	if txID != 0 {
		t, errno = d.Txns.Acquire(txID)
		if errno != errs.None {
			return nil, errno
		}
		defer d.Txns.Release(t)
	}

	mode := wire.ImpliedLockMode(op)
	o.RWC.Acquire(conc.Mode(mode))
	defer o.RWC.Release(conc.Mode(mode))

	switch op {
	case wire.OpQuery:
		return o.Plugin.Query(o, t, req)
	case wire.OpInsert:
		return runMutation(o.Plugin.Insert, o, t, req)
	case wire.OpUpdate:
		return runMutation(o.Plugin.Update, o, t, req)
	case wire.OpRemove:
		return runMutation(o.Plugin.Remove, o, t, req)
	case wire.OpIoctl:
		return runMutation(o.Plugin.Ioctl, o, t, req)
	case wire.OpSync:
		return nil, o.Plugin.Sync(o, t)
	default:
		return nil, errs.NotImplemented
	}
}

// runMutation dispatches a write-mode op and, on a fatal error with an
// active transaction, drives the rollback path.
// Object-layer violations (DATA_CAS, DATA_KEY_EXISTS, ...) are
// reported to the caller without touching the transaction; whether to
// abort on those is the caller's call.
func runMutation(fn func(*Object, *txn.Txn, []byte) ([]byte, errs.Errno), o *Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	resp, errno := fn(o, t, req)
	if errno.FatalToTxn() && t != nil {
		t.Rollback()
	}
	return resp, errno
}
