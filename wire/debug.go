package wire

import (
	jsoniter "github.com/json-iterator/go"
)

// debugHeader is Header's JSON-friendly shadow: Header itself stays a
// tight struct meant for the hot encode/decode path, so the debug
// dump uses its own type with exported field names rather than adding
// json tags to the wire-critical one.
type debugHeader struct {
	MsgType   string `json:"msg_type"`
	ReqID     uint64 `json:"req_id"`
	IsRequest bool   `json:"is_request"`
}

// DebugJSON renders h as a human-readable JSON snapshot, for log lines
// and test failure output, never for anything on the wire.
func DebugJSON(h Header) (string, error) {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(debugHeader{
		MsgType:   h.MsgType.String(),
		ReqID:     h.ReqID,
		IsRequest: h.IsRequest,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
