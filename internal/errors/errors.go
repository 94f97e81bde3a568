// Package errors provides the error taxonomy shared by the store, the
// capture pipeline and the command service.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure. Codes are surfaced verbatim to IPC clients.
type ErrorCode string

const (
	// ErrNotFound means an id or hash is absent.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict means a duplicate hash on an unconditional insert.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrInvalidArgument means a malformed request or an empty id set.
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrExternalTool means the clipboard tool failed or reported non-success.
	ErrExternalTool ErrorCode = "EXTERNAL_TOOL_FAILURE"
	// ErrStore means an underlying store I/O or constraint failure.
	ErrStore ErrorCode = "STORE_FAILURE"
	// ErrArtifact means a file write, decode or encode failure.
	ErrArtifact ErrorCode = "ARTIFACT_FAILURE"
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

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
