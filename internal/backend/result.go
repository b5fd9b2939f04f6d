package backend

import (
	"fmt"
	"time"
)

// ErrorKind classifies every failure the gateway can report to a client.
type ErrorKind string

const (
	ErrBackendUnavailable ErrorKind = "backend_unavailable"
	ErrBackendError       ErrorKind = "backend_error"
	ErrMalformedPayload   ErrorKind = "malformed_upstream_payload"
	ErrLocalIO            ErrorKind = "local_io_error"
	ErrBadRequest         ErrorKind = "bad_request"
)

// Error is the structured failure carried by a Result.
type Error struct {
	Kind       ErrorKind
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Backend, e.Message())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message renders the client-facing text for the error.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrBackendError:
		return fmt.Sprintf("Status %d - %s", e.StatusCode, e.Body)
	case ErrBackendUnavailable:
		if e.Err != nil {
			return fmt.Sprintf("Backend unavailable: %v", e.Err)
		}
		return "Backend unavailable"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
}

// Unavailable builds a transport-level failure.
func Unavailable(backend string, err error) *Error {
	return &Error{Kind: ErrBackendUnavailable, Backend: backend, Err: err}
}

// StatusError builds a failure for a reachable backend answering non-200.
func StatusError(backend string, status int, body []byte) *Error {
	return &Error{Kind: ErrBackendError, Backend: backend, StatusCode: status, Body: string(body)}
}

// LocalIO wraps a failure writing gateway-owned state.
func LocalIO(err error) *Error {
	return &Error{Kind: ErrLocalIO, Err: err}
}

// BadRequest reports an invalid client submission.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: ErrBadRequest, Err: fmt.Errorf(format, args...)}
}

// Result is the normalized outcome of one backend call: either Text or Err is meaningful, never both.
type Result struct {
	Text    string
	Latency time.Duration
	Err     *Error
}

func Success(text string) Result {
	return Result{Text: text}
}

func Failure(err *Error) Result {
	return Result{Err: err}
}

func (r Result) OK() bool {
	return r.Err == nil
}

// LatencySeconds reports the latency as a float rounded to milliseconds.
func (r Result) LatencySeconds() float64 {
	return float64(r.Latency.Milliseconds()) / 1000
}
