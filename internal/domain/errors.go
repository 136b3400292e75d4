// Package domain provides shared domain-level sentinel errors and the
// machine-readable error kinds carried on task and workflow records.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a structurally invalid request (bad workflow DAG,
// missing required parameter, illegal status transition).
var ErrValidation = errors.New("validation")

// ErrCapabilityNotSupported indicates the target agent does not declare the
// requested capability.
var ErrCapabilityNotSupported = errors.New("capability not supported")

// ErrCapabilityUnresolved indicates no registered agent provides the
// requested capability.
var ErrCapabilityUnresolved = errors.New("capability unresolved")

// ErrUnreachable indicates a network-level failure talking to a remote agent.
var ErrUnreachable = errors.New("agent unreachable")

// ErrMalformedCard indicates a capability card that could not be decoded.
var ErrMalformedCard = errors.New("malformed capability card")

// ErrTimeout indicates polling gave up before the remote task went terminal.
// The remote task may still complete after the caller stops waiting.
var ErrTimeout = errors.New("timeout awaiting completion")

// ErrHandlerFailure indicates a capability handler returned an error or
// panicked while executing a task.
var ErrHandlerFailure = errors.New("handler failure")

// Error kind identifiers as they appear on the wire.
const (
	KindNotFound               = "not-found"
	KindValidation             = "validation"
	KindCapabilityNotSupported = "capability-not-supported"
	KindCapabilityUnresolved   = "capability-unresolved"
	KindUnreachable            = "unreachable"
	KindMalformedCard          = "malformed-card"
	KindTimeout                = "timeout"
	KindHandlerFailure         = "handler-failure"
	KindInternal               = "internal"
)

// Kind maps an error to its wire kind. Unrecognized errors are internal.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrCapabilityNotSupported):
		return KindCapabilityNotSupported
	case errors.Is(err, ErrCapabilityUnresolved):
		return KindCapabilityUnresolved
	case errors.Is(err, ErrUnreachable):
		return KindUnreachable
	case errors.Is(err, ErrMalformedCard):
		return KindMalformedCard
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrHandlerFailure):
		return KindHandlerFailure
	default:
		return KindInternal
	}
}
