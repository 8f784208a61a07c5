package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// CallErrorKind is the failure taxonomy for upstream provider calls. Keeping
// it typed lets callers decide how to degrade instead of parsing strings.
type CallErrorKind string

const (
	CallTimeout    CallErrorKind = "timeout"
	CallHTTPStatus CallErrorKind = "http_status"
	CallTransport  CallErrorKind = "transport"
)

type CallError struct {
	Kind   CallErrorKind
	Status int
	Body   string
	Err    error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case CallTimeout:
		return "provider timeout - request took too long"
	case CallHTTPStatus:
		return fmt.Sprintf("provider HTTP error %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("provider error: %v", e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func TimeoutError(err error) *CallError {
	return &CallError{Kind: CallTimeout, Err: err}
}

func HTTPStatusError(status int, body string) *CallError {
	return &CallError{Kind: CallHTTPStatus, Status: status, Body: body}
}

func TransportError(err error) *CallError {
	return &CallError{Kind: CallTransport, Err: err}
}

// ClassifyTransport wraps a transport-level failure, distinguishing timeouts
// (deadline exceeded or net timeout) from other transport faults.
func ClassifyTransport(err error) *CallError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutError(err)
	}
	return TransportError(err)
}

// AsCallError unwraps err into the typed taxonomy when possible.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
