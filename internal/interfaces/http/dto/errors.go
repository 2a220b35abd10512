package dto

import (
	"net/http"

	"github.com/clinic/pharmacy/internal/domain/shared"
)

// Error codes returned to API clients. Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used when a request body or query fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when the body is not valid JSON
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeForeignKey          = "ERR_FOREIGN_KEY"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
)

// Availability error codes
const (
	ErrCodeTransient      = "ERR_TRANSIENT"
	ErrCodePersistence    = "ERR_PERSISTENCE"
	ErrCodeMaxConnections = "ERR_MAX_CONNECTIONS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeForeignKey:          http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidTransition: http.StatusUnprocessableEntity,
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,

	ErrCodeTransient:      http.StatusServiceUnavailable,
	ErrCodePersistence:    http.StatusInternalServerError,
	ErrCodeMaxConnections: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeValidation:             ErrCodeValidation,
	shared.CodeNotFound:               ErrCodeNotFound,
	shared.CodeInvalidTransition:      ErrCodeInvalidTransition,
	shared.CodeInvalidState:           ErrCodeInvalidState,
	shared.CodeInsufficientStock:      ErrCodeInsufficientStock,
	shared.CodeConcurrentModification: ErrCodeConcurrencyConflict,
	shared.CodeDuplicateKey:           ErrCodeAlreadyExists,
	shared.CodeForeignKey:             ErrCodeForeignKey,
	shared.CodeTransient:              ErrCodeTransient,
	shared.CodePersistence:            ErrCodePersistence,
}

// NormalizeErrorCode converts a domain error code to the API vocabulary.
// Codes already in API form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
