// Package fault defines the error kinds used at component boundaries.
//
// Components return plain wrapped errors internally; at a boundary the error
// is classified into one of the kinds below so that HTTP handlers and the
// call pipeline can react uniformly (status code mapping, degrade vs kill).
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error at a component boundary.
type Kind int

const (
	// KindUnknown is the zero value; treated as an internal error.
	KindUnknown Kind = iota
	// KindValidation covers malformed inputs at boundaries (HTTP 400).
	KindValidation
	// KindAuth covers missing or expired credentials (HTTP 401).
	KindAuth
	// KindForbidden covers a missing scope on a valid token (HTTP 403).
	KindForbidden
	// KindNotFound covers absent resources, including cross-tenant
	// lookups which must not reveal existence (HTTP 404).
	KindNotFound
	// KindQuotaExceeded covers per-org capacity limits (HTTP 429).
	KindQuotaExceeded
	// KindOverloaded covers process-wide capacity limits (HTTP 429).
	KindOverloaded
	// KindDependency covers failed or timed-out external services.
	// The session degrades but stays alive.
	KindDependency
	// KindInvariant covers broken internal contracts. Fatal to the
	// session, never to the process.
	KindInvariant
	// KindFatal covers unrecoverable process-level failures (data store
	// unreachable, signing key missing).
	KindFatal
)

// String returns the kind's canonical name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindOverloaded:
		return "overloaded"
	case KindDependency:
		return "dependency"
	case KindInvariant:
		return "invariant"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to the status code the API surfaces.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindQuotaExceeded, KindOverloaded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error carrying a Kind. It wraps an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a fault of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a fault of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error. Returns nil when err is nil.
func Wrap(kind Kind, msg string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Cause: err}
}

// KindOf extracts the kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Common sentinels used across the orchestrator.
var (
	// ErrNotFound is the generic absent-resource error. Cross-tenant
	// lookups return this, never a forbidden error.
	ErrNotFound = New(KindNotFound, "resource not found")

	// ErrQuotaExceeded is returned when an org is at its concurrent-call
	// limit.
	ErrQuotaExceeded = New(KindQuotaExceeded, "concurrent call limit reached")

	// ErrAgentUnavailable is returned when the target agent is not idle.
	ErrAgentUnavailable = New(KindQuotaExceeded, "agent unavailable")

	// ErrOverloaded is returned when a process-wide in-flight cap could
	// not be acquired within the bounded wait.
	ErrOverloaded = New(KindOverloaded, "process capacity exhausted")

	// ErrIngressClosed is returned when the telephony bridge closed the
	// audio stream.
	ErrIngressClosed = New(KindDependency, "ingress stream closed")
)
