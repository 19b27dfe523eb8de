// Package apperror provides structured error handling for the platform.
// All business errors must use AppError so that the HTTP layer can produce
// consistent responses with a stable machine-readable code and a localized
// message the mobile client can show directly.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to clients. The code is the stable contract; the
// message is localized and may change.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeTimeout  = "TIMEOUT"

	// Authentication / authorization (401, 403)
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodePermissionDenied       = "PERMISSION_DENIED"

	// Validation (400, 422)
	CodeValidation         = "VALIDATION_FAILED"
	CodeBatchLimitExceeded = "BATCH_LIMIT_EXCEEDED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Concurrency (409, 423)
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeLockedByOther   = "LOCKED_BY_OTHER"
	CodeAlreadyUndone   = "ALREADY_UNDONE"
	CodeConflict        = "CONFLICT"
)

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable, pre-localized error description
	Message string `json:"message"`

	// Details contains additional context (field errors, ids, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewAuthenticationRequired is returned when no actor profile could be
// resolved from the caller's identity.
func NewAuthenticationRequired() *AppError {
	return &AppError{
		Code:       CodeAuthenticationRequired,
		Message:    MsgAuthenticationRequired,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewPermissionDenied is returned when the resolver grants less than the
// level a direct mutation requires.
func NewPermissionDenied(level string) *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    MsgPermissionDenied,
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]any{"permission_level": level},
	}
}

// NewValidation creates a validation error (400).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404). Soft-deleted rows count as
// missing for every caller-facing operation.
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    MsgNotFound,
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewVersionConflict creates an optimistic locking error (409). The caller
// is expected to re-fetch and retry.
func NewVersionConflict(entity string, id any, expected, actual int) *AppError {
	return &AppError{
		Code:       CodeVersionConflict,
		Message:    MsgVersionConflict,
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"entity":           entity,
			"id":               id,
			"expected_version": expected,
			"actual_version":   actual,
		},
	}
}

// NewLockedByOther is returned when a NOWAIT row lock or a try-advisory lock
// could not be acquired. Fail-fast, never queued.
func NewLockedByOther(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeLockedByOther,
		Message:    MsgLockedByOther,
		HTTPStatus: http.StatusLocked,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBatchLimitExceeded is returned when a batch operation exceeds its cap.
func NewBatchLimitExceeded(limit, got int) *AppError {
	return &AppError{
		Code:       CodeBatchLimitExceeded,
		Message:    MsgBatchLimitExceeded,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"limit": limit, "got": got},
	}
}

// NewAlreadyUndone is returned on a repeated undo of the same log entry.
func NewAlreadyUndone(entryID any) *AppError {
	return &AppError{
		Code:       CodeAlreadyUndone,
		Message:    MsgAlreadyUndone,
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entry_id": entryID},
	}
}

// NewTimeout is returned when a statement timeout fired.
func NewTimeout(operation string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    MsgTimeout,
		HTTPStatus: http.StatusGatewayTimeout,
		Details:    map[string]any{"operation": operation},
	}
}

// NewConflict creates a generic conflict error (409).
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewInternal creates an internal server error (hides details from client).
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    MsgInternal,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound.
func IsNotFound(err error) bool { return Is(err, CodeNotFound) }

// IsVersionConflict checks if error is CodeVersionConflict.
func IsVersionConflict(err error) bool { return Is(err, CodeVersionConflict) }

// IsLockedByOther checks if error is CodeLockedByOther.
func IsLockedByOther(err error) bool { return Is(err, CodeLockedByOther) }

// IsPermissionDenied checks if error is CodePermissionDenied.
func IsPermissionDenied(err error) bool { return Is(err, CodePermissionDenied) }

// IsAlreadyUndone checks if error is CodeAlreadyUndone.
func IsAlreadyUndone(err error) bool { return Is(err, CodeAlreadyUndone) }
