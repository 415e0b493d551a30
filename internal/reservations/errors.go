package reservations

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies engine failures. Each kind has one stable user-facing message.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindLimitExceeded     Kind = "limit_exceeded"
	KindIneligible        Kind = "ineligible"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindTransient         Kind = "transient"
	KindInvalidState      Kind = "invalid_state"
	KindDuplicate         Kind = "duplicate"
)

var messages = map[Kind]string{
	KindValidation:        "invalid reservation request",
	KindConflict:          "room is already reserved for that time",
	KindLimitExceeded:     "reservation limit reached",
	KindIneligible:        "department is not allowed to book this floor",
	KindCapacityExceeded:  "participant count exceeds room capacity",
	KindInvalidTransition: "reservation cannot change to the requested state",
	KindNotFound:          "reservation not found",
	KindTransient:         "temporarily unavailable, retry",
	KindInvalidState:      "reservation is not in a terminal state",
	KindDuplicate:         "participant already on the roster",
}

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := messages[e.Kind]
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Message is the stable text shown to users (no wrapped cause).
func (e *Error) Message() string {
	if e.Detail != "" {
		return messages[e.Kind] + ": " + e.Detail
	}
	return messages[e.Kind]
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded}
	ErrIneligible        = &Error{Kind: KindIneligible}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrTransient         = &Error{Kind: KindTransient}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may safely retry the whole operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// classify maps store errors onto the taxonomy. Already-typed errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, ErrNoRows):
		return &Error{Kind: KindNotFound, Err: err}
	case errors.Is(err, ErrOverlap):
		return &Error{Kind: KindConflict, Err: err}
	case errors.Is(err, ErrStaleVersion):
		return &Error{Kind: KindTransient, Detail: "reservation changed concurrently", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransient, Detail: "store timeout", Err: err}
	default:
		return &Error{Kind: KindTransient, Err: err}
	}
}
