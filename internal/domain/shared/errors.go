// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidEvent    = errors.New("invalid evaluation event")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors
	ErrConcurrentUpdate = errors.New("concurrent update conflict")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "rating", "security"
	Op      string // Operation that failed, e.g., "ApplyEvent", "Grant"
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
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
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

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student with this ticket already exists")
	ErrInvalidStudentID     = NewDomainError("student", "Validate", ErrInvalidID, "invalid student ID")
	ErrInvalidTicket        = NewDomainError("student", "Validate", ErrEmptyValue, "student ticket is required")
	ErrInvalidFullName      = NewDomainError("student", "Validate", ErrEmptyValue, "full name is required")
	ErrInvalidStudentStatus = NewDomainError("student", "UpdateStatus", ErrStateTransition, "invalid student status transition")
	ErrStatOutOfRange       = NewDomainError("student", "Validate", ErrValueOutOfRange, "stat must be between 0 and 100")
)

// Rating domain errors
var (
	ErrUnknownEventKind     = NewDomainError("rating", "Validate", ErrInvalidEvent, "unknown evaluation event kind")
	ErrGradeOutOfRange      = NewDomainError("rating", "Validate", ErrInvalidEvent, "grade must be between 2 and 5")
	ErrInvalidPlacement     = NewDomainError("rating", "Validate", ErrInvalidEvent, "placement must be at least 1 and not exceed participants")
	ErrNegativeKudos        = NewDomainError("rating", "Validate", ErrInvalidEvent, "kudos bonus cannot be negative")
	ErrMissingEventPayload  = NewDomainError("rating", "Validate", ErrInvalidEvent, "event payload does not match its kind")
	ErrRatingUpdateConflict = NewDomainError("rating", "ApplyEvent", ErrConcurrentUpdate, "rating update conflicted with a concurrent writer")
)

// Achievement domain errors
var (
	ErrUnknownAchievement = NewDomainError("achievement", "Find", ErrNotFound, "achievement definition not found")
)

// Security domain errors
var (
	ErrAlertNotFound = NewDomainError("security", "Find", ErrNotFound, "alert not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidEvent checks if an evaluation event was rejected before any write.
func IsInvalidEvent(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrStateTransition)
}

// IsConflict checks if the error is a concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}

// IsStoreUnavailable checks if the error came from a failing store.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}
