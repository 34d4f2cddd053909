package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugJSONRendersHeaderFields(t *testing.T) {
	h := Header{MsgType: MakeMsgType(ClassObject, OpInsert), ReqID: 7, IsRequest: true}
	js, err := DebugJSON(h)
	require.NoError(t, err)
	require.Contains(t, js, `"msg_type":"object:insert"`)
	require.Contains(t, js, `"req_id":7`)
	require.Contains(t, js, `"is_request":true`)
}

func TestMsgTypeStringUnknownOpFallsBackToIndex(t *testing.T) {
	m := MakeMsgType(ClassObject, 7)
	require.Equal(t, "object:7", m.String())
}
