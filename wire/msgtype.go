package wire

import "fmt"

// MsgClass is the semantic-vs-object split encoded at bit 29 of a
// MsgType: bit 29 carries the class, bits 26-28 a 3-bit op index (≤ 8 ops per
// class, matching the two enumerated op lists below exactly), and bits 0-25
// are left to the (out-of-scope) transport layer.
type MsgClass uint32

const (
	ClassSemantic MsgClass = 0
	ClassObject   MsgClass = 1
)

// Semantic ops.
const (
	OpCreate uint32 = iota
	OpRename
	OpExists
)

// Object ops.
const (
	OpQuery uint32 = iota
	OpInsert
	OpUpdate
	OpRemove
	OpIoctl
	OpSync
	OpUnlink
)

// MsgType is the 32-bit message type word.
type MsgType uint32

const (
	classShift = 29
	opShift    = 26
	opMask     = 0x7
)

// MakeMsgType packs a class and op index into the bits 26-29 the rest of
// the word is reserved for transport.
func MakeMsgType(class MsgClass, op uint32) MsgType {
	return MsgType(uint32(class)<<classShift | (op&opMask)<<opShift)
}

// Class reports whether this message targets the semantic layer or an
// object.
func (m MsgType) Class() MsgClass { return MsgClass((uint32(m) >> classShift) & 1) }

// Op extracts the 3-bit op index within m's class.
func (m MsgType) Op() uint32 { return (uint32(m) >> opShift) & opMask }

var semanticOpNames = [...]string{"create", "rename", "exists"}
var objectOpNames = [...]string{"query", "insert", "update", "remove", "ioctl", "sync", "unlink"}

// String renders m as "<class>:<op>" for logs and DebugJSON, not for
// anything that travels on the wire.
func (m MsgType) String() string {
	op := m.Op()
	if m.Class() == ClassSemantic {
		if int(op) < len(semanticOpNames) {
			return "semantic:" + semanticOpNames[op]
		}
		return fmt.Sprintf("semantic:%d", op)
	}
	if int(op) < len(objectOpNames) {
		return "object:" + objectOpNames[op]
	}
	return fmt.Sprintf("object:%d", op)
}

// LockMode is the rwcsem mode a given object op implies.
type LockMode int

const (
	LockRead LockMode = iota
	LockWrite
	LockCommit
)

// ImpliedLockMode maps an object op to the rwcsem mode execute() must
// acquire before dispatching it.
func ImpliedLockMode(op uint32) LockMode {
	switch op {
	case OpQuery:
		return LockRead
	case OpSync:
		return LockCommit
	default:
		return LockWrite
	}
}
