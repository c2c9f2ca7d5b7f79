package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so transport layers can map them
// to the right response without string matching.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindCapacityExhausted ErrorKind = "capacity_exhausted"
	KindInvalidState      ErrorKind = "invalid_state"
)

// Error is the common error type for all domain-level failures.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// NewInvalidInputError signals a caller-fixable input problem.
func NewInvalidInputError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError signals that a referenced entity does not exist.
func NewNotFoundError(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// NewConflictError signals a state-machine or uniqueness violation.
func NewConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewCapacityExhaustedError signals that a category cap has been reached.
// Kept distinct from Conflict so UIs can message it specifically.
func NewCapacityExhaustedError(category, codeType string) *Error {
	return &Error{
		Kind:    KindCapacityExhausted,
		Message: fmt.Sprintf("no %s capacity remaining in category %s", codeType, category),
	}
}

// NewInvalidStateError signals an illegal state transition.
func NewInvalidStateError(current, target string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Message: fmt.Sprintf("invalid state transition from %s to %s", current, target),
	}
}

// KindOf returns the kind of err, or empty string if err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsInvalidInput(err error) bool      { return KindOf(err) == KindInvalidInput }
func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsCapacityExhausted(err error) bool { return KindOf(err) == KindCapacityExhausted }
func IsInvalidState(err error) bool      { return KindOf(err) == KindInvalidState }
