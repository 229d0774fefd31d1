package rpc

import (
	"fmt"
)

// AuthError means no usable anti-forgery token could be obtained. New
// credentials are required; retrying with the same cookies will not help.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notebooklm auth: %s: %v", e.Reason, e.Err)
	}
	return "notebooklm auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a network failure or a non-2xx response.
type TransportError struct {
	Method     string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s: transport: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("rpc %s: unexpected status %d: %s", e.Method, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolShapeError is returned when a mandatory positional field is absent
// or has the wrong type. Raw carries the decoded payload for diagnosis.
type ProtocolShapeError struct {
	Method string
	Field  string
	Raw    string
}

func (e *ProtocolShapeError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("rpc %s: unexpected response shape at %s: %s", e.Method, e.Field, raw)
}
