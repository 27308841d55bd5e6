// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidID    = errors.New("invalid ID")
	ErrEmptyValue   = errors.New("value cannot be empty")
	ErrPastDeadline = errors.New("time must be in the future")

	// Business-rule errors. ErrConflict covers time overlaps, wrong-state
	// transitions, an already-active period, and open dependent work.
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrExternalService = errors.New("external service error")
	ErrTimeout         = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "period"
	Op      string // Operation that failed, e.g., "Create", "Close"
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

// Session domain errors
var (
	ErrSessionNotFound     = NewDomainError("session", "Find", ErrNotFound, "mentoring session not found")
	ErrSessionCompleted    = NewDomainError("session", "Update", ErrInvalidState, "completed session is immutable")
	ErrSessionCancelled    = NewDomainError("session", "Update", ErrInvalidState, "session is cancelled")
	ErrSessionNotScheduled = NewDomainError("session", "Transition", ErrStateTransition, "session is not in scheduled status")
	ErrNotSessionAdvisor   = NewDomainError("session", "Authorize", ErrUnauthorized, "advisor does not own this session")
	ErrNoSupervisoryRole   = NewDomainError("session", "Authorize", ErrUnauthorized, "advisor has no active supervisory role on the project")
)

// Period domain errors
var (
	ErrPeriodNotFound      = NewDomainError("period", "Find", ErrNotFound, "academic period not found")
	ErrYearAlreadyExists   = NewDomainError("period", "Open", ErrAlreadyExists, "a period for this academic year already exists")
	ErrPeriodAlreadyActive = NewDomainError("period", "Open", ErrConflict, "another period is already active")
	ErrPeriodNotActive     = NewDomainError("period", "Close", ErrInvalidState, "period is not active")
	ErrPeriodNotPreparing  = NewDomainError("period", "Promote", ErrInvalidState, "period is not in preparing status")
	ErrOpeningOverlap      = NewDomainError("period", "Schedule", ErrConflict, "opening time collides with another period")
	ErrPeriodIsActive      = NewDomainError("period", "Delete", ErrConflict, "active period cannot be deleted")
	ErrPeriodHasOpenWork   = NewDomainError("period", "Close", ErrConflict, "period has unfinished thesis projects")
	ErrPeriodHasDependents = NewDomainError("period", "Delete", ErrConflict, "period has dependent records")
)

// Thesis domain errors
var (
	ErrProjectNotFound    = NewDomainError("thesis", "Find", ErrNotFound, "thesis project not found")
	ErrAssignmentNotFound = NewDomainError("thesis", "FindAssignment", ErrNotFound, "supervisory assignment not found")
	ErrRevisionNotFound   = NewDomainError("thesis", "FindRevision", ErrNotFound, "document revision not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a business-rule conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsUnauthorized checks if the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrPastDeadline)
}
