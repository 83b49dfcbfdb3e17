package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
)

const codecLogPrefix = "envelope:codec"

// Encode serializes an envelope (or any payload) to JSON.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeRequest parses wire bytes into a Request. Malformed JSON yields PARSE_ERROR and a
// request without a method yields INVALID_REQUEST.
func DecodeRequest(data []byte) (*Request, *ErrorInfo) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, NewError(CodeParseError, "Failed to parse request", map[string]any{"error": err.Error()})
	}
	if strings.TrimSpace(req.Method) == "" {
		return &req, NewError(CodeInvalidRequest, "Request method is required", nil)
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return &req, nil
}

// DecodeResponse parses wire bytes into a Response and checks the result/error invariant.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%s - failed to decode response: %w", codecLogPrefix, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%s - invalid response %s: %w", codecLogPrefix, resp.ID, err)
	}
	return &resp, nil
}

// ToParams converts a typed payload into the open parameter map carried by Request.Params
// and Response.Result.
func ToParams(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode params: %w", codecLogPrefix, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s - params must encode to an object: %w", codecLogPrefix, err)
	}
	return out, nil
}

// DecodeParams converts an open parameter map into a typed value.
func DecodeParams(m map[string]any, out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s - failed to encode map: %w", codecLogPrefix, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s - failed to decode params: %w", codecLogPrefix, err)
	}
	return nil
}

// DecodeField decodes one key of an open map into out. A missing key leaves out untouched.
func DecodeField(m map[string]any, key string, out any) error {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s - failed to encode field %s: %w", codecLogPrefix, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s - failed to decode field %s: %w", codecLogPrefix, key, err)
	}
	return nil
}
