// Package errors provides error code definitions shared across the sync core
// and the host application boundary.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to the host application.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync core errors
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrMissingServerID    ErrorCode = "MISSING_SERVER_ID"
	ErrRemoteOperation    ErrorCode = "REMOTE_OPERATION_FAILED"
	ErrTransactionAborted ErrorCode = "TRANSACTION_ABORTED"
	ErrSyncInProgress     ErrorCode = "SYNC_IN_PROGRESS"
	ErrQueueItemNotFound  ErrorCode = "QUEUE_ITEM_NOT_FOUND"
	ErrPrefetchFailed     ErrorCode = "PREFETCH_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// Code returns the error code of err, or ErrInternal for plain errors.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
