package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoAnswer is returned when the event stream closed cleanly without ever
// emitting a final_answer frame. It is an answerless completion, not a
// transport failure, and is never retried.
var ErrNoAnswer = errors.New("stream completed without a final answer")

// MalformedResponseError reports a response body that could not be decoded
// as an SSE-framed JSON-RPC envelope.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Detail)
}

// BackendError is a JSON-RPC error envelope or an error frame emitted by the
// remote agent. The call is terminal; the caller shows its fixed fallback
// message, never this text.
type BackendError struct {
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

// TimeoutError means the client's own wall-clock ceiling cancelled the call.
// It is never retried, regardless of how far the stream had progressed.
type TimeoutError struct {
	Ceiling time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call exceeded the %s ceiling", e.Ceiling)
}

// TransportError is a transport-level failure below HTTP: a connection
// reset, a DNS failure, a dropped connection. Eligible for retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-200 HTTP response. Whether it is retried depends on
// the status code (see ClassifyStatus).
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
