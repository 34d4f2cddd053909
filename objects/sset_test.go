package objects

import (
	"testing"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/txn"
	"github.com/stretchr/testify/require"
)

func newSsetObject(t *testing.T) *object.Object {
	t.Helper()
	o := &object.Object{OID: 1, TypeName: "sset"}
	require.Equal(t, errs.None, NewSset().Create(o))
	return o
}

func TestSsetInsertContainsDuplicate(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()

	_, errno := s.Insert(o, nil, []byte("alice"))
	require.Equal(t, errs.None, errno)

	resp, errno := s.Query(o, nil, append([]byte{ssetQueryContains}, []byte("alice")...))
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte{1}, resp)

	resp, errno = s.Query(o, nil, append([]byte{ssetQueryContains}, []byte("bob")...))
	require.Equal(t, errs.None, errno)
	require.Equal(t, []byte{0}, resp)

	_, errno = s.Insert(o, nil, []byte("alice"))
	require.ErrorIs(t, errno, errs.DataKeyExists)
}

func TestSsetRemoveNotFound(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()

	_, errno := s.Remove(o, nil, []byte("ghost"))
	require.ErrorIs(t, errno, errs.DataKeyNotFound)

	s.Insert(o, nil, []byte("alice"))
	_, errno = s.Remove(o, nil, []byte("alice"))
	require.Equal(t, errs.None, errno)

	resp, _ := s.Query(o, nil, append([]byte{ssetQueryContains}, []byte("alice")...))
	require.Equal(t, []byte{0}, resp)
}

func TestSsetPrefixQueryReturnsSortedMatches(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()

	for _, m := range []string{"app", "apple", "banana", "applesauce"} {
		_, errno := s.Insert(o, nil, []byte(m))
		require.Equal(t, errs.None, errno)
	}

	resp, errno := s.Query(o, nil, append([]byte{ssetQueryPrefix}, []byte("app")...))
	require.Equal(t, errs.None, errno)

	var got []string
	for len(resp) > 0 {
		n := int(resp[0]) | int(resp[1])<<8 | int(resp[2])<<16 | int(resp[3])<<24
		resp = resp[4:]
		got = append(got, string(resp[:n]))
		resp = resp[n:]
	}
	require.Equal(t, []string{"app", "apple", "applesauce"}, got)
}

func TestSsetInsertRollbackRemovesMember(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()
	mgr := txn.NewManager()
	tx := mgr.Create()

	_, errno := s.Insert(o, tx, []byte("alice"))
	require.Equal(t, errs.None, errno)

	tx.Rollback()

	resp, _ := s.Query(o, nil, append([]byte{ssetQueryContains}, []byte("alice")...))
	require.Equal(t, []byte{0}, resp)
}

func TestSsetRemoveRollbackRestoresMember(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()
	s.Insert(o, nil, []byte("alice"))

	mgr := txn.NewManager()
	tx := mgr.Create()

	_, errno := s.Remove(o, tx, []byte("alice"))
	require.Equal(t, errs.None, errno)

	tx.Rollback()

	resp, _ := s.Query(o, nil, append([]byte{ssetQueryContains}, []byte("alice")...))
	require.Equal(t, []byte{1}, resp)
}

func TestSsetUpdateAndIoctlNotImplemented(t *testing.T) {
	o := newSsetObject(t)
	s := NewSset()

	_, errno := s.Update(o, nil, nil)
	require.ErrorIs(t, errno, errs.NotImplemented)

	_, errno = s.Ioctl(o, nil, nil)
	require.ErrorIs(t, errno, errs.NotImplemented)
}
