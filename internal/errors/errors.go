package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Database errors
	CodeDatabase           ErrorCode = "DATABASE_ERROR"
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"

	// Upstream portal errors
	CodeUpstream           ErrorCode = "UPSTREAM_ERROR"
	CodeUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeAuthExpired        ErrorCode = "AUTH_EXPIRED"
	CodeHandshakeFailed    ErrorCode = "HANDSHAKE_FAILED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Sync errors
	CodeJobConflict   ErrorCode = "JOB_CONFLICT"
	CodeMalformedItem ErrorCode = "MALFORMED_ITEM"
	CodeSyncCancelled ErrorCode = "SYNC_CANCELLED"

	// Config errors
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// UpstreamError creates an upstream portal error
func UpstreamError(message string, err error) *AppError {
	return Wrap(err, CodeUpstream, message)
}

// AuthExpiredError creates an auth-expiry error. The portal client treats
// this as the signal for a single re-handshake-and-retry.
func AuthExpiredError(message string) *AppError {
	return New(CodeAuthExpired, message)
}

// JobConflictError signals that a sync job is already processing for a provider
func JobConflictError(providerID, jobID string) *AppError {
	return New(CodeJobConflict, "sync already in progress").
		WithContext("provider_id", providerID).
		WithContext("job_id", jobID)
}

// MalformedItemError creates a per-item data error; the walker logs and skips these
func MalformedItemError(message string, err error) *AppError {
	return Wrap(err, CodeMalformedItem, message)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeUpstreamTimeout, CodeServiceUnavailable, CodeRateLimited,
			CodeDatabaseConnection:
			return true
		}
	}
	return false
}

// IsAuthExpired checks if an error is an auth-expiry error
func IsAuthExpired(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeAuthExpired
	}
	return false
}

// IsJobConflict checks if an error is a duplicate-active-job rejection
func IsJobConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeJobConflict
	}
	return false
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
