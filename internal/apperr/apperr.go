// Package apperr defines the failure taxonomy shared by the store and
// API layers. Every business failure carries a kind, a human-readable
// message, and optionally the entities (course codes, student names,
// slot descriptions) it is about.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindPolicyViolation  Kind = "policy_violation"
	KindScheduleConflict Kind = "schedule_conflict"
	KindAlreadyEnrolled  Kind = "already_enrolled"
	KindStorage          Kind = "storage_failure"
)

// Error is a structured business failure.
type Error struct {
	Kind     Kind
	Message  string
	Entities []string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a structured failure of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithEntities attaches the machine-readable entity list and returns
// the same error for chaining.
func (e *Error) WithEntities(entities ...string) *Error {
	e.Entities = entities
	return e
}

// InvalidInput reports malformed identifiers, intervals, or empty
// selections. These never reach storage.
func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

// NotFound reports an absent student, course, timeslot, or enrollment.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// PolicyViolation reports a cross-college enrollment attempt.
func PolicyViolation(format string, args ...any) *Error {
	return New(KindPolicyViolation, format, args...)
}

// ScheduleConflict reports an interval overlap, whether internal to a
// selection, against a student's existing schedule, or affecting
// students enrolled in a mutated course.
func ScheduleConflict(format string, args ...any) *Error {
	return New(KindScheduleConflict, format, args...)
}

// AlreadyEnrolled reports duplicate enrollment attempts.
func AlreadyEnrolled(format string, args ...any) *Error {
	return New(KindAlreadyEnrolled, format, args...)
}

// Storage wraps an unexpected storage-layer failure. The cause is kept
// in the message chain for logs; callers see a generic description.
func Storage(err error) *Error {
	return New(KindStorage, "storage failure: %v", err)
}

// KindOf extracts the failure kind from an error chain, returning
// KindStorage for errors that are not structured failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// EntitiesOf extracts the entity list from an error chain, if any.
func EntitiesOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Entities
	}
	return nil
}
