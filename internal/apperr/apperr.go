// Package apperr defines the stable error taxonomy surfaced by the
// booking domain. Callers branch on Kind; messages are for humans.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidService    Kind = "invalid_service_configuration"
	KindNotFound          Kind = "not_found"
	KindSlotUnavailable   Kind = "slot_unavailable"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindAuthRequired      Kind = "authentication_required"
	KindTimeout           Kind = "timeout"
	KindUpstream          Kind = "upstream_failure"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperr values by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind, defaulting to upstream failure for errors
// the domain did not classify.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
