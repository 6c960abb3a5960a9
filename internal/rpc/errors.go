package rpc

import (
	"errors"

	"connectrpc.com/connect"
)

// ErrorReason returns the domain reason the server attached to err, or ""
func ErrorReason(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr.Meta().Get(ErrorReasonHeader)
	}
	return ""
}
