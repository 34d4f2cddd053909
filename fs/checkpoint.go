package fs

import (
	"encoding/binary"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/kvmap"
	"github.com/raleighsl/fs/rsum"
)

// Checkpoint layout on the device, written front to back by FS.Sync:
//
//	[0, superblockSize)   superblock (magic, version, ns/table extents, crc)
//	[superblockSize, ..)  object state images, one per persistable object
//	[nsOff, nsOff+nsLen)  semantic.Namespace snapshot
//	[tabOff, ..)          oid -> (offset, length) extent table, a
//	                      kvmap.ChainMap block keyed by the 8-byte oid
//
// The extent table is the on-device analogue of the object's devbufs
// pointer: restore reads it once at open and the Dispatcher's
// Loader pulls individual images lazily on first reference.
const (
	superblockMagic   = uint32(0x434C5352) // "RSLC"
	superblockVersion = uint16(1)
	superblockSize    = 48

	extentTableSize    = 1 << 16
	extentTableBuckets = 512
	extentKeySize      = 8
	extentValSize      = 12 // offset u64 + length u32
)

func oidKey(oid uint64) []byte {
	key := make([]byte, extentKeySize)
	binary.LittleEndian.PutUint64(key, oid)
	return key
}

// Sync checkpoints the whole fs to its device: every persistable
// object's state image, the namespace snapshot, the extent table, and
// finally the superblock, then flushes. NotImplemented if the fs was
// opened without a device.
func (fs *FS) Sync() errs.Errno {
	if fs.Dev == nil {
		return errs.NotImplemented
	}

	tableBuf := make([]byte, extentTableSize)
	table := kvmap.InitChainMap(tableBuf, extentTableBuckets, extentKeySize, extentValSize)

	off := int64(superblockSize)
	for _, e := range fs.Dispatcher.NS.Entries() {
		image, errno := fs.Dispatcher.SnapshotObject(e.OID, e.TypeName)
		if errno != errs.None {
			return errno
		}
		if image == nil {
			continue
		}
		slot, _, ok := table.Put(oidKey(e.OID))
		if !ok {
			return errs.NoMemory
		}
		binary.LittleEndian.PutUint64(slot[0:8], uint64(off))
		binary.LittleEndian.PutUint32(slot[8:12], uint32(len(image)))
		if _, err := fs.Dev.Write(off, [][]byte{image}); err != nil {
			return errs.NoMemory
		}
		off += int64(len(image))
	}

	ns := fs.Dispatcher.NS.Snapshot()
	nsOff := off
	if _, err := fs.Dev.Write(nsOff, [][]byte{ns}); err != nil {
		return errs.NoMemory
	}
	off += int64(len(ns))

	tabOff := off
	if _, err := fs.Dev.Write(tabOff, [][]byte{tableBuf}); err != nil {
		return errs.NoMemory
	}
	off += int64(len(tableBuf))

	sb := make([]byte, superblockSize)
	binary.LittleEndian.PutUint32(sb[0:4], superblockMagic)
	binary.LittleEndian.PutUint16(sb[4:6], superblockVersion)
	binary.LittleEndian.PutUint64(sb[8:16], uint64(nsOff))
	binary.LittleEndian.PutUint32(sb[16:20], uint32(len(ns)))
	binary.LittleEndian.PutUint64(sb[20:28], uint64(tabOff))
	binary.LittleEndian.PutUint32(sb[28:32], uint32(len(tableBuf)))
	binary.LittleEndian.PutUint32(sb[32:36], rsum.CRC32C(sb[:32]))
	if _, err := fs.Dev.Write(0, [][]byte{sb}); err != nil {
		return errs.NoMemory
	}
	if err := fs.Dev.Sync(0, off); err != nil {
		return errs.NoMemory
	}

	fs.installLoader(tableBuf)
	return errs.None
}

// loadCheckpoint restores the namespace and wires the Dispatcher's
// Loader to the extent table found on the device. Called from Open when
// the device already holds data.
func (fs *FS) loadCheckpoint() errs.Errno {
	sb := make([]byte, superblockSize)
	if _, err := fs.Dev.Read(0, [][]byte{sb}); err != nil {
		return errs.NotImplemented
	}
	if binary.LittleEndian.Uint32(sb[0:4]) != superblockMagic ||
		binary.LittleEndian.Uint16(sb[4:6]) != superblockVersion ||
		binary.LittleEndian.Uint32(sb[32:36]) != rsum.CRC32C(sb[:32]) {
		return errs.NotImplemented
	}

	nsOff := int64(binary.LittleEndian.Uint64(sb[8:16]))
	nsLen := binary.LittleEndian.Uint32(sb[16:20])
	ns := make([]byte, nsLen)
	if _, err := fs.Dev.Read(nsOff, [][]byte{ns}); err != nil {
		return errs.NotImplemented
	}
	if errno := fs.Dispatcher.NS.Restore(ns); errno != errs.None {
		return errno
	}

	tabOff := int64(binary.LittleEndian.Uint64(sb[20:28]))
	tabLen := binary.LittleEndian.Uint32(sb[28:32])
	tableBuf := make([]byte, tabLen)
	if _, err := fs.Dev.Read(tabOff, [][]byte{tableBuf}); err != nil {
		return errs.NotImplemented
	}
	fs.installLoader(tableBuf)
	return errs.None
}

// installLoader points the Dispatcher's first-open restore hook at the
// given extent table image.
func (fs *FS) installLoader(tableBuf []byte) {
	table := kvmap.OpenChainMap(tableBuf)
	fs.Dispatcher.SetLoader(func(oid uint64) ([]byte, bool) {
		v, ok := table.Get(oidKey(oid))
		if !ok {
			return nil, false
		}
		off := int64(binary.LittleEndian.Uint64(v[0:8]))
		length := binary.LittleEndian.Uint32(v[8:12])
		image := make([]byte, length)
		if _, err := fs.Dev.Read(off, [][]byte{image}); err != nil {
			return nil, false
		}
		return image, true
	})
}
