// Package apperror defines the typed errors returned across service boundaries.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindValidation           Kind = "VALIDATION_FAILED"
	KindTherapistUnavailable Kind = "THERAPIST_UNAVAILABLE"
	KindInvalidTransition    Kind = "INVALID_TRANSITION"
	KindConflict             Kind = "CONFLICT"
)

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed error carried from the domain to the transport layer.
type Error struct {
	Kind          Kind
	Message       string
	Fields        []FieldError
	CurrentStatus string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// NewUnauthenticatedError is returned when a protected operation has no principal.
func NewUnauthenticatedError(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// NewForbiddenError is returned when the principal lacks permission.
func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewNotFoundError is returned when an entity is absent or not visible to the caller.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewValidationError is returned for malformed input without field detail.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewFieldValidationError is returned for malformed input with per-field messages.
func NewFieldValidationError(fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// NewTherapistUnavailableError is returned when a booking targets a therapist that cannot take it.
func NewTherapistUnavailableError(therapistID string) *Error {
	return &Error{
		Kind:    KindTherapistUnavailable,
		Message: fmt.Sprintf("therapist %s is not available for booking", therapistID),
	}
}

// NewInvalidTransitionError is returned when the state machine rejects a status change.
func NewInvalidTransitionError(current, target string) *Error {
	return &Error{
		Kind:          KindInvalidTransition,
		Message:       fmt.Sprintf("cannot transition booking from %s to %s", current, target),
		CurrentStatus: current,
	}
}

// NewConflictError is returned when a conditional write lost a race.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FieldErrors accumulates field messages for one validation pass.
type FieldErrors []FieldError

// Add appends a field message.
func (f *FieldErrors) Add(field, message string) {
	*f = append(*f, FieldError{Field: field, Message: message})
}

// Err returns nil when empty, or a validation error carrying all fields.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return NewFieldValidationError(f)
}
