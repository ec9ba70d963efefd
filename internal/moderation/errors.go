package moderation

import (
	"errors"
	"fmt"
)

// Kind categorizes errors returned at the engine boundary.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindNoChanges        Kind = "NO_CHANGES"
	KindConflict         Kind = "CONFLICT"
	KindInvalidState     Kind = "INVALID_STATE"
	KindValidation       Kind = "VALIDATION"
)

// Error is the typed error returned by engine operations.
//
// Callers match on the kind with errors.Is against the sentinel values below,
// or unwrap with errors.As to read Reason and Op.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op is the engine operation that failed, e.g. "submit_edit".
	Op string

	// Message is a human-readable description.
	Message string

	// Reason is the policy reason for PermissionDenied errors.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNoChanges        = &Error{Kind: KindNoChanges}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrValidation       = &Error{Kind: KindValidation}
)

// ErrDuplicate is returned by stores when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("duplicate record")

// ErrStatusChanged is returned by stores when a conditional update finds the
// record in a different status than the one it expected.
var ErrStatusChanged = errors.New("record status changed")

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of an engine error, or "" for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PermissionReason returns the policy reason carried by a PermissionDenied error.
func PermissionReason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindPermissionDenied {
		return e.Reason
	}
	return ""
}

func notFound(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func permissionDenied(op string, d Decision) error {
	return &Error{Kind: KindPermissionDenied, Op: op, Message: "permission denied: " + d.Reason, Reason: d.Reason}
}

func noChanges(op string) error {
	return &Error{Kind: KindNoChanges, Op: op, Message: "no changes detected"}
}

func conflict(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalidState(op, format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Op: op, Message: fmt.Sprintf(format, args...)}
}

func validation(op string, err error, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}
