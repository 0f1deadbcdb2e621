// Package apperror provides structured error handling for the GRN workflow.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by recovery strategy
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeSystem   = "SYSTEM_ERROR"

	// Validation errors (400)
	CodeValidation       = "VALIDATION_ERROR"
	CodeQuantityMismatch = "QUANTITY_MISMATCH"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeAccessDenied = "ACCESS_DENIED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"

	// External ERP failures (502/504), recorded per PO link during posting
	CodeSAPAuthFailed  = "SAP_AUTH_FAILED"
	CodeSAPUnreachable = "SAP_UNREACHABLE"
	CodeSAPRejected    = "SAP_REJECTED"
)

// AppError is the standard error type for the service.
// It implements the error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewQuantityMismatch creates a detail-quantity reconciliation error (400)
func NewQuantityMismatch(expected, got string) *AppError {
	return &AppError{
		Code:       CodeQuantityMismatch,
		Message:    "Detail quantities do not reconcile with the selected quantity",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"expected": expected, "got": got},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidTransition creates an error for an illegal batch status transition (422)
func NewInvalidTransition(from, action string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Batch cannot be %s from %s status", action, from),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"status": from, "action": action},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewAccessDenied creates an authorization error (403).
// Distinct from validation: the caller is authenticated but not allowed.
func NewAccessDenied(message string) *AppError {
	return &AppError{
		Code:       CodeAccessDenied,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- External ERP errors ---

// NewSAPAuthFailed creates an error for a Service Layer session that could not
// be established or renewed.
func NewSAPAuthFailed(err error) *AppError {
	return &AppError{
		Code:       CodeSAPAuthFailed,
		Message:    "SAP authentication failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewSAPUnreachable creates a connectivity/timeout error against the Service Layer.
func NewSAPUnreachable(err error) *AppError {
	return &AppError{
		Code:       CodeSAPUnreachable,
		Message:    "Cannot reach SAP Service Layer",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewSAPRejected creates an error for a non-2xx Service Layer response with a body.
// Never silently retried; always recorded against the specific PO link.
func NewSAPRejected(status int, body string) *AppError {
	return &AppError{
		Code:       CodeSAPRejected,
		Message:    "SAP rejected the document",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"sap_status": status, "sap_error": body},
	}
}

// NewSystem creates an error for an unexpected internal fault during posting.
// The posting boundary converts these into a retryable batch state.
func NewSystem(err error) *AppError {
	return &AppError{
		Code:       CodeSystem,
		Message:    "System error during posting",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsValidation checks if error is a locally-recoverable input error
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeValidation || appErr.Code == CodeQuantityMismatch
	}
	return false
}

// IsAccessDenied checks if error is CodeAccessDenied
func IsAccessDenied(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeAccessDenied
	}
	return false
}

// IsSAPAuthFailed checks if error is CodeSAPAuthFailed
func IsSAPAuthFailed(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeSAPAuthFailed
	}
	return false
}
