// Package semantic implements the flat name->oid namespace:
// create/open/unlink/rename over a single name table, plus the
// snapshot/restore pair the checkpoint path persists it with.
package semantic

import (
	"sync"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/wire"
)

// entry records a name's oid and the object-type plugin it was created
// against, so package object can route an opened name to the right
// Plugin without a second lookup.
type entry struct {
	oid      uint64
	typeName string
}

// Namespace is the flat namespace plugin: a single name -> (oid,
// typeName) map. A real deployment persists this map
// through the device interface (package device); Namespace here holds
// it in memory and exposes Snapshot/Restore for a caller that wants to
// serialize it (fs wires this to a device.Device).
type Namespace struct {
	mu      sync.RWMutex
	byName  map[string]entry
	nextOID uint64
}

// New constructs an empty namespace.
func New() *Namespace {
	return &Namespace{byName: map[string]entry{}}
}

// Create allocates a fresh oid for `name` and binds it to `typeName`,
// failing with ObjectExists if the name is already bound.
func (ns *Namespace) Create(name, typeName string) (uint64, errs.Errno) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, ok := ns.byName[name]; ok {
		return 0, errs.ObjectExists
	}
	ns.nextOID++
	oid := ns.nextOID
	ns.byName[name] = entry{oid: oid, typeName: typeName}
	return oid, errs.None
}

// Open resolves a name to its (oid, typeName), failing with
// ObjectNotFound if unbound.
func (ns *Namespace) Open(name string) (uint64, string, errs.Errno) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	e, ok := ns.byName[name]
	if !ok {
		return 0, "", errs.ObjectNotFound
	}
	return e.oid, e.typeName, errs.None
}

// Exists reports whether name is bound, without allocating.
func (ns *Namespace) Exists(name string) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	_, ok := ns.byName[name]
	return ok
}

// Unlink removes name's binding, failing with ObjectNotFound if it was
// never bound.
func (ns *Namespace) Unlink(name string) (uint64, errs.Errno) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	e, ok := ns.byName[name]
	if !ok {
		return 0, errs.ObjectNotFound
	}
	delete(ns.byName, name)
	return e.oid, errs.None
}

// Rename moves old_name's binding to new_name, failing with
// ObjectNotFound if old_name is unbound.
func (ns *Namespace) Rename(oldName, newName string) errs.Errno {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	e, ok := ns.byName[oldName]
	if !ok {
		return errs.ObjectNotFound
	}
	delete(ns.byName, oldName)
	ns.byName[newName] = e
	return errs.None
}

// Info is one namespace binding, exposed for the checkpoint path (fs
// snapshots every binding when it syncs to a device.Device).
type Info struct {
	Name     string
	OID      uint64
	TypeName string
}

// Entries returns every binding, in unspecified order.
func (ns *Namespace) Entries() []Info {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]Info, 0, len(ns.byName))
	for name, e := range ns.byName {
		out = append(out, Info{Name: name, OID: e.oid, TypeName: e.typeName})
	}
	return out
}

// Snapshot serializes the namespace to the wire byte format: a varint
// entry count and the oid high watermark, then per entry the name, oid,
// and type label, each length-prefixed through wire.WriteBytes so names
// of any length survive the round trip.
func (ns *Namespace) Snapshot() []byte {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	size := wire.VarintSize(uint64(len(ns.byName))) + wire.VarintSize(ns.nextOID)
	for name, e := range ns.byName {
		size += wire.BytesSize([]byte(name)) + wire.VarintSize(e.oid) + wire.BytesSize([]byte(e.typeName))
	}
	buf := make([]byte, size)
	n := wire.EncodeVarint(buf, uint64(len(ns.byName)))
	n += wire.EncodeVarint(buf[n:], ns.nextOID)
	for name, e := range ns.byName {
		n += wire.WriteBytes(buf[n:], []byte(name))
		n += wire.EncodeVarint(buf[n:], e.oid)
		n += wire.WriteBytes(buf[n:], []byte(e.typeName))
	}
	return buf[:n]
}

// Restore replaces the namespace's contents with a Snapshot image.
// The oid high watermark is restored too, so ids handed out after a
// restore never collide with ids the snapshot already bound.
func (ns *Namespace) Restore(buf []byte) errs.Errno {
	count, n, ok := wire.DecodeVarint(buf)
	if !ok {
		return errs.NotImplemented
	}
	nextOID, vn, ok := wire.DecodeVarint(buf[n:])
	if !ok {
		return errs.NotImplemented
	}
	n += vn
	byName := make(map[string]entry, count)
	for i := uint64(0); i < count; i++ {
		name, bn, ok := wire.ReadBytes(buf[n:])
		if !ok {
			return errs.NotImplemented
		}
		n += bn
		oid, vn, ok := wire.DecodeVarint(buf[n:])
		if !ok {
			return errs.NotImplemented
		}
		n += vn
		typeName, bn, ok := wire.ReadBytes(buf[n:])
		if !ok {
			return errs.NotImplemented
		}
		n += bn
		byName[string(name)] = entry{oid: oid, typeName: string(typeName)}
	}
	ns.mu.Lock()
	ns.byName = byName
	ns.nextOID = nextOID
	ns.mu.Unlock()
	return errs.None
}
