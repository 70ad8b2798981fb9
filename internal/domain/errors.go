// Package domain contains the core business entities of corefacility.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrEntityNotFound indicates a lookup yielded no row, or that a
	// resource is hidden from the principal by the access-control list.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityDuplicated indicates a uniqueness violation on create or update.
	ErrEntityDuplicated = errors.New("entity duplicated")

	// ErrFieldInvalid indicates a field assignment failed validation or a
	// required field was empty during create/update.
	ErrFieldInvalid = errors.New("entity field invalid")

	// ErrOperationNotPermitted indicates a state-machine misuse or a policy
	// violation, such as removing a governor from its own group.
	ErrOperationNotPermitted = errors.New("entity operation not permitted")

	// ErrProviderNotDefined indicates a programmer error: an entity class has
	// no provider list attached. Surfaces only during development.
	ErrProviderNotDefined = errors.New("entity provider not defined")

	// ErrBaseDirIO indicates a filesystem operation on a project or user
	// directory failed.
	ErrBaseDirIO = errors.New("base directory I/O failure")

	// ErrPosixCommandFailed indicates a queued or directly executed OS
	// command returned a non-zero status.
	ErrPosixCommandFailed = errors.New("posix command failed")

	// ErrSecurityCheckFailed indicates a queued POSIX action failed the
	// deserialization or origin check. The offending row is purged.
	ErrSecurityCheckFailed = errors.New("security check failed")

	// ErrMailAddressUndefined indicates the recipient has no email address.
	ErrMailAddressUndefined = errors.New("mail address undefined")

	// ErrMailFailed indicates mail delivery failed.
	ErrMailFailed = errors.New("mail delivery failed")

	// ErrConfigurationProfile indicates an operation was used in a
	// configuration mode that forbids it.
	ErrConfigurationProfile = errors.New("operation forbidden by configuration profile")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., login, project alias).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{Err: err, Message: message, Resource: resource}
}

// FieldError reports which field failed validation.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrFieldInvalid.Error(), e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrFieldInvalid) hold for every FieldError.
func (e *FieldError) Unwrap() error {
	return ErrFieldInvalid
}

// NewFieldError creates a validation error for a named field.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}
