package protocol

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Action is what the caller should do with a failure.
type Action int

const (
	// ActionRetryTransient: back off and retry the request.
	ActionRetryTransient Action = iota
	// ActionFatalLog: give up, log, show nothing special to the user.
	ActionFatalLog
	// ActionFatalUser: give up, the user gets the fixed fallback message.
	ActionFatalUser
	// ActionInformational: not a failure, note it and move on.
	ActionInformational
)

func (a Action) String() string {
	switch a {
	case ActionRetryTransient:
		return "transient-retry"
	case ActionFatalLog:
		return "fatal-log-only"
	case ActionFatalUser:
		return "fatal-user-visible"
	case ActionInformational:
		return "informational"
	}
	return "unknown"
}

// Classify maps a failure into the retry decision table. The ordering
// matters: the client's own timeout must win over the net-level errors it
// usually surfaces as, so it is checked first.
func Classify(err error) Action {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return ActionFatalLog
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ActionFatalLog
	}

	var backend *BackendError
	if errors.As(err, &backend) {
		return ActionFatalUser
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return ActionFatalLog
	}
	if errors.Is(err, ErrNoAnswer) {
		return ActionFatalLog
	}

	var status *StatusError
	if errors.As(err, &status) {
		return ClassifyStatus(status.StatusCode)
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return ActionRetryTransient
	}

	// Raw network failures that escaped wrapping.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ActionRetryTransient
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return ActionRetryTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ActionRetryTransient
	}

	return ActionFatalLog
}

// ClassifyStatus maps an HTTP status code into the decision table.
// 409 means the backend already processed this request; it is noted, not
// treated as a failure.
func ClassifyStatus(code int) Action {
	switch {
	case code == http.StatusConflict:
		return ActionInformational
	case code >= 500, code == http.StatusTooManyRequests:
		return ActionRetryTransient
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ActionFatalUser
	default:
		return ActionFatalLog
	}
}
