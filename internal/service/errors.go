package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrorKind classifies every rejected shift operation so callers can tell
// "fix the form" from "pick another till" from "refresh" from "retry later".
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *Error matches the one for its Kind.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("store unavailable")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindPersistence:
		return ErrPersistence
	}
	return nil
}

// Error is the typed outcome of a rejected operation.
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields maps every invalid input field to the rule it broke (validation only).
	Fields map[string]string
	// ShiftID names the existing shift behind a conflict, when known.
	ShiftID *uuid.UUID
	// OutcomeUnknown is set when a write timed out or was cancelled: the
	// write may have landed. Re-query before retrying.
	OutcomeUnknown bool
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func validationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

func conflictError(msg string, shiftID *uuid.UUID) *Error {
	return &Error{Kind: KindConflict, Message: msg, ShiftID: shiftID}
}

func notFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func persistenceError(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// writeError wraps a failed store write. A write interrupted by the deadline
// or cancellation may still have committed.
func writeError(ctx context.Context, msg string, err error) *Error {
	e := persistenceError(msg, err)
	e.OutcomeUnknown = errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
	return e
}
