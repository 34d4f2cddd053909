package semantic

import (
	"testing"

	"github.com/raleighsl/fs/errs"
	"github.com/stretchr/testify/require"
)

func TestCreateOpenUnlinkRename(t *testing.T) {
	ns := New()

	oid, errno := ns.Create("k", "counter")
	require.Equal(t, errs.None, errno)
	require.NotZero(t, oid)

	_, errno = ns.Create("k", "counter")
	require.ErrorIs(t, errno, errs.ObjectExists)

	got, typeName, errno := ns.Open("k")
	require.Equal(t, errs.None, errno)
	require.Equal(t, oid, got)
	require.Equal(t, "counter", typeName)

	_, _, errno = ns.Open("missing")
	require.ErrorIs(t, errno, errs.ObjectNotFound)

	require.Equal(t, errs.None, ns.Rename("k", "k2"))
	require.False(t, ns.Exists("k"))
	require.True(t, ns.Exists("k2"))

	_, errno = ns.Unlink("k2")
	require.Equal(t, errs.None, errno)
	require.False(t, ns.Exists("k2"))

	_, errno = ns.Unlink("k2")
	require.ErrorIs(t, errno, errs.ObjectNotFound)
}

func TestOIDsAreMonotonicAndNeverReused(t *testing.T) {
	ns := New()
	o1, _ := ns.Create("a", "counter")
	o2, _ := ns.Create("b", "counter")
	require.Less(t, o1, o2)

	ns.Unlink("a")
	o3, _ := ns.Create("a", "counter")
	require.Greater(t, o3, o2)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ns := New()
	oids := map[string]uint64{}
	for _, c := range []struct{ name, typeName string }{
		{"hits", "counter"},
		{"queue", "deque"},
		{"members", "sset"},
	} {
		oid, errno := ns.Create(c.name, c.typeName)
		require.Equal(t, errs.None, errno)
		oids[c.name] = oid
	}

	restored := New()
	require.Equal(t, errs.None, restored.Restore(ns.Snapshot()))

	for name, oid := range oids {
		got, _, errno := restored.Open(name)
		require.Equal(t, errs.None, errno)
		require.Equal(t, oid, got)
	}

	// The oid high watermark travels with the snapshot.
	next, errno := restored.Create("later", "counter")
	require.Equal(t, errs.None, errno)
	require.Greater(t, next, oids["members"])
}

func TestRestoreRejectsTruncatedImage(t *testing.T) {
	ns := New()
	_, errno := ns.Create("k", "counter")
	require.Equal(t, errs.None, errno)

	image := ns.Snapshot()
	restored := New()
	require.NotEqual(t, errs.None, restored.Restore(image[:len(image)-2]))
}
