// Package envelope defines the request/response/error message envelope exchanged
// between the router, workers and clients.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// Request is the envelope for a call routed to a worker. An empty ID marks a notification.
type Request struct {
	ID           string         `json:"id"`
	Method       string         `json:"method"`
	Params       map[string]any `json:"params"`
	SourceWorker string         `json:"source_agent,omitempty"`
	TargetWorker string         `json:"target_agent,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Response is the envelope returned for a Request. Exactly one of Result and Error is set.
type Response struct {
	ID           string         `json:"id"`
	Result       map[string]any `json:"result"`
	Error        *ErrorInfo     `json:"error,omitempty"`
	SourceWorker string         `json:"source_agent,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewRequest creates a request with a fresh id.
func NewRequest(method string, params map[string]any, source, target string) *Request {
	if params == nil {
		params = map[string]any{}
	}
	return &Request{
		ID:           uuid.New().String(),
		Method:       method,
		Params:       params,
		SourceWorker: source,
		TargetWorker: target,
		Timestamp:    time.Now().UTC(),
	}
}

// NewNotification creates a request without an id; no response is expected.
func NewNotification(method string, params map[string]any, source, target string) *Request {
	req := NewRequest(method, params, source, target)
	req.ID = ""
	return req
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == ""
}

// NewResponse creates a success response. A nil result is normalized to an empty map
// so the result side of the envelope is always the one set.
func NewResponse(id string, result map[string]any, source string) *Response {
	if result == nil {
		result = map[string]any{}
	}
	return &Response{
		ID:           id,
		Result:       result,
		SourceWorker: source,
		Timestamp:    time.Now().UTC(),
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string, data map[string]any, source string) *Response {
	return &Response{
		ID:           id,
		Error:        NewError(code, message, data),
		SourceWorker: source,
		Timestamp:    time.Now().UTC(),
	}
}

// ErrorResponseFrom wraps an existing ErrorInfo into a response.
func ErrorResponseFrom(id string, e *ErrorInfo, source string) *Response {
	return &Response{
		ID:           id,
		Error:        e,
		SourceWorker: source,
		Timestamp:    time.Now().UTC(),
	}
}

// OK reports whether the response carries a result.
func (r *Response) OK() bool {
	return r.Error == nil
}

// Validate checks the exactly-one-of result/error invariant on a decoded response.
func (r *Response) Validate() error {
	switch {
	case r.Error != nil && r.Result != nil:
		return NewError(CodeInvalidRequest, "response carries both result and error", nil)
	case r.Error == nil && r.Result == nil:
		return NewError(CodeInvalidRequest, "response carries neither result nor error", nil)
	}
	return nil
}
