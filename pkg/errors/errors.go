// Package errors provides the domain error type and the transport-aware
// error classifier of the ctxlog core. Domain errors carry a stable code,
// an HTTP status, a loggability flag and client-safe payload builders;
// anything else is a generic failure that is always logged. The classifier
// is the single place where loggability is decided and where a caught
// failure is shaped into a transport-appropriate response.
//
// Example usage:
//
//	if user == nil {
//	    return errors.NewNotFound("USER_NOT_FOUND", "user does not exist")
//	}
//
//	// at the catch site:
//	classifier.HTTP(w, r, err)
package errors

import (
	"fmt"
	"runtime"
)

// DomainError is an intentional, classified failure. Construct it with New
// or one of the code-specific helpers; the stack is captured at construction.
type DomainError struct {
	// Code is the stable, machine-readable error code (e.g. USER_NOT_FOUND).
	Code string

	// Name is the logical error name surfaced as error_name in records.
	Name string

	// Message is the human-readable, client-safe description.
	Message string

	// StatusCode is the HTTP status for request/response transports.
	// Zero means internal server error.
	StatusCode int

	// Loggable declares whether this failure appears in the operator-visible
	// log stream. It never affects the caller-visible response.
	Loggable bool

	// Transport is the unit-of-work transport tag (http, rpc, websocket),
	// set once by the classifier at catch time.
	Transport string

	// Meta is free-form structured detail merged into the error record.
	Meta map[string]any

	cause error
	stack []string
}

// New creates a loggable domain error with the given code and message.
func New(code, message string) *DomainError {
	return &DomainError{
		Code:     code,
		Name:     "DomainError",
		Message:  message,
		Loggable: true,
		stack:    captureStack(2),
	}
}

// Newf creates a loggable domain error with a formatted message.
func Newf(code, format string, args ...any) *DomainError {
	e := New(code, fmt.Sprintf(format, args...))
	e.stack = captureStack(2)
	return e
}

// NewNotFound creates a 404 domain error. Expected lookup misses are not
// logged by default.
func NewNotFound(code, message string) *DomainError {
	e := New(code, message)
	e.StatusCode = 404
	e.Loggable = false
	e.stack = captureStack(2)
	return e
}

// NewInvalidInput creates a 400 domain error. Validation failures are not
// logged by default.
func NewInvalidInput(code, message string) *DomainError {
	e := New(code, message)
	e.StatusCode = 400
	e.Loggable = false
	e.stack = captureStack(2)
	return e
}

// NewUnauthorized creates a 401 domain error, not logged by default.
func NewUnauthorized(code, message string) *DomainError {
	e := New(code, message)
	e.StatusCode = 401
	e.Loggable = false
	e.stack = captureStack(2)
	return e
}

// NewInternal creates a loggable 500 domain error.
func NewInternal(code, message string) *DomainError {
	e := New(code, message)
	e.StatusCode = 500
	e.stack = captureStack(2)
	return e
}

// WithStatus sets the HTTP status code.
func (e *DomainError) WithStatus(status int) *DomainError {
	e.StatusCode = status
	return e
}

// WithName sets the logical error name.
func (e *DomainError) WithName(name string) *DomainError {
	e.Name = name
	return e
}

// WithMeta attaches structured detail.
func (e *DomainError) WithMeta(meta map[string]any) *DomainError {
	e.Meta = meta
	return e
}

// WithCause records the underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.cause = cause
	return e
}

// NotLoggable suppresses this error from the log stream.
func (e *DomainError) NotLoggable() *DomainError {
	e.Loggable = false
	return e
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// ErrorName returns the logical error name for structured records.
func (e *DomainError) ErrorName() string {
	return e.Name
}

// StackTrace returns the stack captured at construction, one frame per line.
func (e *DomainError) StackTrace() []string {
	return e.stack
}

// Status returns the HTTP status code, defaulting to internal server error.
func (e *DomainError) Status() int {
	if e.StatusCode == 0 {
		return 500
	}
	return e.StatusCode
}

// SetTransportIfUnset tags the error with the transport of the current unit
// of work. Idempotent: a failure re-thrown across transport boundaries keeps
// its original tag.
func (e *DomainError) SetTransportIfUnset(transport string) {
	if e.Transport == "" {
		e.Transport = transport
	}
}

// ClientPayload builds the client-safe body for request/response transports.
func (e *DomainError) ClientPayload() map[string]any {
	return map[string]any{
		"code":       e.Code,
		"message":    e.Message,
		"statusCode": e.Status(),
	}
}

// RPCPayload builds the payload carried by re-raised remote-call and
// message-event errors.
func (e *DomainError) RPCPayload() map[string]any {
	payload := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Meta) > 0 {
		payload["meta"] = e.Meta
	}
	return payload
}

// captureStack records the construction call stack as formatted lines.
func captureStack(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	lines := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			lines = append(lines, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return lines
}
