package fs

import (
	"testing"

	"github.com/raleighsl/fs/errs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/rcfg"
	"github.com/raleighsl/fs/txn"
	"github.com/raleighsl/fs/wire"
	"github.com/stretchr/testify/require"
)

type fakeState struct{ value uint64 }

type fakePlugin struct{}

func (fakePlugin) TypeName() string { return "fake" }
func (fakePlugin) Create(o *object.Object) errs.Errno {
	o.SetState(&fakeState{})
	return errs.None
}
func (fakePlugin) Open(o *object.Object) errs.Errno {
	if o.State() == nil {
		o.SetState(&fakeState{})
	}
	return errs.None
}
func (fakePlugin) Close(o *object.Object) errs.Errno          { return errs.None }
func (fakePlugin) Sync(o *object.Object, t *txn.Txn) errs.Errno { return errs.None }
func (fakePlugin) Unlink(o *object.Object) errs.Errno         { return errs.None }

func (fakePlugin) Query(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := o.State().(*fakeState)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(st.value >> (8 * i))
	}
	return buf, errs.None
}
func (fakePlugin) Insert(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := o.State().(*fakeState)
	st.value = 1
	return nil, errs.None
}
func (fakePlugin) Update(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	st := o.State().(*fakeState)
	st.value++
	return nil, errs.None
}
func (fakePlugin) Remove(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}
func (fakePlugin) Ioctl(o *object.Object, t *txn.Txn, req []byte) ([]byte, errs.Errno) {
	return nil, errs.NotImplemented
}

func newTestFS(t *testing.T) *FS {
	t.Helper()
	reg := object.NewRegistry()
	reg.Register(fakePlugin{})
	conf := rcfg.DefaultConfig()
	conf.NCores = 2
	f, err := Open(conf, reg, 64, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFSCreateExecuteUnlink(t *testing.T) {
	f := newTestFS(t)

	oid, errno := f.CreateObject("obj1", "fake")
	require.Equal(t, errs.None, errno)
	require.NotZero(t, oid)

	_, errno = f.Execute(wire.OpInsert, "obj1", 0, nil)
	require.Equal(t, errs.None, errno)

	resp, errno := f.Execute(wire.OpQuery, "obj1", 0, nil)
	require.Equal(t, errs.None, errno)
	require.Equal(t, uint64(1), uint64(resp[0]))

	require.Equal(t, errs.None, f.Unlink("obj1"))

	_, errno = f.Execute(wire.OpQuery, "obj1", 0, nil)
	require.ErrorIs(t, errno, errs.ObjectNotFound)
}

func TestFSExecuteUnknownNameFails(t *testing.T) {
	f := newTestFS(t)
	_, errno := f.Execute(wire.OpQuery, "missing", 0, nil)
	require.ErrorIs(t, errno, errs.ObjectNotFound)
}

func TestFSMultipleObjectsAcrossCores(t *testing.T) {
	f := newTestFS(t)
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		_, errno := f.CreateObject(name, "fake")
		require.Equal(t, errs.None, errno)
		_, errno = f.Execute(wire.OpInsert, name, 0, nil)
		require.Equal(t, errs.None, errno)
	}
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		resp, errno := f.Execute(wire.OpQuery, name, 0, nil)
		require.Equal(t, errs.None, errno)
		require.Equal(t, uint64(1), uint64(resp[0]))
	}
}
