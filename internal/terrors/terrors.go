// Package terrors defines TempleDB's error taxonomy.
//
// Every component in the core returns errors of one of the Kinds below.
// Components never swallow a storage-layer error; only the commit engine
// performs semantic recovery (downgrading a Conflict to a successful
// commit under the force strategy).
package terrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets from spec §7.
type Kind string

const (
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	IntegrityViolation Kind = "integrity_violation"
	InvalidInput      Kind = "invalid_input"
	Unavailable       Kind = "unavailable"
	Cancelled         Kind = "cancelled"
	NotImplemented    Kind = "not_implemented"
)

// ConflictingFile describes one file in a commit-conflict report.
type ConflictingFile struct {
	Path           string
	YourVersion    int
	CurrentVersion int
}

// Error is the concrete error type returned across the core.
type Error struct {
	Kind      Kind
	Message   string
	Err       error
	Conflicts []ConflictingFile
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, terrors.NotFound) style checks work by comparing Kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New builds a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a new Error of the given kind wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewConflict builds a Conflict error carrying the list of conflicting files.
func NewConflict(message string, conflicts []ConflictingFile) *Error {
	return &Error{Kind: Conflict, Message: message, Conflicts: conflicts}
}

// Sentinel values usable with errors.Is for the zero-detail case.
var (
	ErrNotFound           = &Error{Kind: NotFound, Message: "not found"}
	ErrConflict           = &Error{Kind: Conflict, Message: "conflict"}
	ErrIntegrityViolation = &Error{Kind: IntegrityViolation, Message: "integrity violation"}
	ErrInvalidInput       = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrUnavailable        = &Error{Kind: Unavailable, Message: "unavailable"}
	ErrCancelled          = &Error{Kind: Cancelled, Message: "cancelled"}
	ErrNotImplemented     = &Error{Kind: NotImplemented, Message: "not implemented"}
)

// Of reports the Kind of err, if it (or something it wraps) is a *Error.
func Of(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// IsKind reports whether err has the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
