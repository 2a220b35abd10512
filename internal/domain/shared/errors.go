package shared

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeInvalidState           = "INVALID_STATE"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicateKey           = "DUPLICATE_KEY"
	CodeForeignKey             = "FOREIGN_KEY_VIOLATION"
	CodeTransient              = "TRANSIENT"
	CodePersistence            = "PERSISTENCE_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether the caller may retry the operation
func (e *DomainError) Retryable() bool {
	return e.Code == CodeConcurrentModification || e.Code == CodeTransient
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause for logging
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common domain errors
var (
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidTransition      = NewDomainError(CodeInvalidTransition, "Status transition not allowed")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock      = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrDuplicateKey           = NewDomainError(CodeDuplicateKey, "Resource already exists")
	ErrForeignKey             = NewDomainError(CodeForeignKey, "Referenced resource does not exist")
	ErrTransient              = NewDomainError(CodeTransient, "Temporary failure, please retry")
	ErrPersistence            = NewDomainError(CodePersistence, "Storage operation failed")
)

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a not-found error for the named entity
func NewNotFoundError(entity string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", entity, id))
}

// NewInvalidTransitionError creates an error for a rejected status change
func NewInvalidTransitionError(from, to string) *DomainError {
	return NewDomainError(CodeInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", from, to))
}

// NewInvalidStateError creates an error for an operation forbidden by current state
func NewInvalidStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// NewInsufficientStockError creates an insufficient stock error
func NewInsufficientStockError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInsufficientStock, fmt.Sprintf(format, args...))
}

// NewConcurrentModificationError creates an optimistic-lock conflict error
func NewConcurrentModificationError(entity string, id any) *DomainError {
	return NewDomainError(CodeConcurrentModification,
		fmt.Sprintf("%s %v was modified by another process, reload and retry", entity, id))
}

// CodeOf returns the domain code carried by err, or "" for foreign errors
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain code
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether err is a concurrency conflict or a transient failure
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return false
}
