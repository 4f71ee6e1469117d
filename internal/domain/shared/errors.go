// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "schedule", "attendance", "group"
	Op      string // Operation that failed, e.g., "Parse", "Enroll"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
// A DomainError also matches another DomainError with the same Domain, Op and Message,
// so wrapped copies produced by WithDetail still satisfy errors.Is against the sentinel.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithDetail returns a copy of the error carrying an underlying cause.
// The copy still matches the original with errors.Is.
func (e *DomainError) WithDetail(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Schedule domain errors
var (
	ErrInvalidTimeFormat = NewDomainError("schedule", "ParseTimeOfDay", ErrInvalidFormat, "invalid time format, expected HH:MM")
	ErrInvalidWeekday    = NewDomainError("schedule", "ParseWeekday", ErrInvalidInput, "invalid weekday")
	ErrInvalidSlot       = NewDomainError("schedule", "NewWeeklySlot", ErrInvalidInput, "slot start must be before end")
	ErrScheduleNotFound  = NewDomainError("schedule", "Find", ErrNotFound, "schedule entry not found")
	ErrScheduleConflict  = NewDomainError("enrollment", "Enroll", ErrConflict, "schedule conflict")
)

// Group configuration errors
var (
	ErrGroupNotFound            = NewDomainError("group", "Find", ErrNotFound, "group not found")
	ErrGroupAlreadyExists       = NewDomainError("group", "Create", ErrAlreadyExists, "group already exists")
	ErrInvalidToleranceRange    = NewDomainError("group", "Validate", ErrValueOutOfRange, "tolerance must be between 0 and 60 minutes")
	ErrUnrecognizedStrategyKind = NewDomainError("group", "ResolveStrategy", ErrInvalidInput, "unrecognized strategy kind")
	ErrInvalidGroupName         = NewDomainError("group", "Validate", ErrEmptyValue, "group name is required")
)

// Enrollment errors
var (
	ErrAlreadyEnrolled = NewDomainError("enrollment", "Enroll", ErrAlreadyExists, "student already enrolled in group")
	ErrNotEnrolled     = NewDomainError("enrollment", "Check", ErrInvalidState, "student is not enrolled in group")
	ErrEnrollmentBusy  = NewDomainError("enrollment", "Lock", ErrConflict, "another enrollment for this student is in progress")
)

// Attendance errors
var (
	ErrAttendanceAlreadyMarked = NewDomainError("attendance", "Mark", ErrAlreadyExists, "attendance already marked for this class")
	ErrWrongGroupSchedule      = NewDomainError("attendance", "Mark", ErrInvalidInput, "schedule entry does not belong to group")
	ErrClassDayMismatch        = NewDomainError("attendance", "Mark", ErrInvalidInput, "class date does not fall on the schedule entry's weekday")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidState)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
