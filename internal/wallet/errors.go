package wallet

import "fmt"

// JSON-RPC style error codes understood by the dApp-facing transport.
const (
	CodeInvalidParams = -32602
	CodeInternal      = -32603
	CodeUserRejected  = 4001
	CodeUnauthorized  = 4100
)

// RPCError is a typed controller-boundary error. The HTTP layer maps it to
// a JSON-RPC style payload; anything else surfaces as a plain internal
// error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func errInternal(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

func errInvalidParams(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func errUserRejected(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeUserRejected, Message: fmt.Sprintf(format, args...)}
}

func errUnauthorized(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}
