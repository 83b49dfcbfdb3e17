package envelope

import (
	"errors"
	"fmt"
)

// Protocol error codes. The first five mirror JSON-RPC; the rest are worker-routing codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeAgentNotFound    = -32001
	CodeAgentUnavailable = -32002
	CodeTimeout          = -32003
	CodeValidationError  = -32004
)

var codeNames = map[int]string{
	CodeParseError:       "PARSE_ERROR",
	CodeInvalidRequest:   "INVALID_REQUEST",
	CodeMethodNotFound:   "METHOD_NOT_FOUND",
	CodeInvalidParams:    "INVALID_PARAMS",
	CodeInternalError:    "INTERNAL_ERROR",
	CodeAgentNotFound:    "AGENT_NOT_FOUND",
	CodeAgentUnavailable: "AGENT_UNAVAILABLE",
	CodeTimeout:          "TIMEOUT",
	CodeValidationError:  "VALIDATION_ERROR",
}

// CodeName returns the symbolic name for a code, or "UNKNOWN".
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// ErrorInfo is the structured protocol error carried in a Response. It also implements
// error so handlers can return it to select a specific code.
type ErrorInfo struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("%s (%d): %s", CodeName(e.Code), e.Code, e.Message)
}

// NewError creates an ErrorInfo.
func NewError(code int, message string, data map[string]any) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: message, Data: data}
}

// AsErrorInfo extracts an ErrorInfo from an error chain.
func AsErrorInfo(err error) (*ErrorInfo, bool) {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info, true
	}
	return nil, false
}

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
