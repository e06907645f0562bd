package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so the transport can choose a response.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthorization
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
	case KindAuthorization:
		return "authorization"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is a typed domain error. Message is safe to show to a caller,
// Err keeps the underlying cause for diagnostics.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches domain errors by kind and message so a wrapped sentinel still
// satisfies errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewPersistenceError wraps a storage failure unrelated to business rules.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// Wrap returns a copy of sentinel carrying err as its cause.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindUnknown
}

// PublicMessage returns a message suitable for API callers. Persistence and
// unclassified failures never leak their cause.
func PublicMessage(err error) string {
	var domainErr *Error
	if !errors.As(err, &domainErr) || domainErr.Kind == KindPersistence {
		return "internal server error"
	}
	return domainErr.Message
}

var (
	// Workspace errors
	ErrWorkspaceNotFound = &Error{Kind: KindNotFound, Message: "workspace not found"}
	ErrWorkspaceInactive = &Error{Kind: KindValidation, Message: "workspace is not active"}

	// Booking errors
	ErrBookingNotFound  = &Error{Kind: KindNotFound, Message: "booking not found"}
	ErrBookingNotOwned  = &Error{Kind: KindAuthorization, Message: "booking belongs to another user"}
	ErrSlotTaken        = &Error{Kind: KindConflict, Message: "slot already booked"}
	ErrNotAvailable     = &Error{Kind: KindConflict, Message: "workspace not available for the requested time/slots"}
	ErrCannotCancel     = &Error{Kind: KindConflict, Message: "cannot cancel a completed or already cancelled booking"}
	ErrInvalidTimeRange = &Error{Kind: KindValidation, Message: "end time must be after start time"}
	ErrStartInPast      = &Error{Kind: KindValidation, Message: "cannot book a workspace in the past"}
	ErrAdvanceNotice    = &Error{Kind: KindValidation, Message: "booking does not meet the advance notice policy"}
	ErrCapacityExceeded = &Error{Kind: KindValidation, Message: "attendees exceed workspace capacity"}
	ErrInvalidAttendees = &Error{Kind: KindValidation, Message: "attendees must be at least 1"}
	ErrInvalidTime      = &Error{Kind: KindValidation, Message: "invalid time format, expected ISO-8601"}
)
