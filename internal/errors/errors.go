package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a hostgate error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"       // malformed input or invariant violation
	ErrNotFound       ErrorCode = "NOT_FOUND"        // referenced entity absent
	ErrConflict       ErrorCode = "CONFLICT"         // uniqueness violation
	ErrDataIntegrity  ErrorCode = "DATA_INTEGRITY"   // hierarchy corruption, broken references
	ErrFolderNotEmpty ErrorCode = "FOLDER_NOT_EMPTY" // non-cascading delete blocked
	ErrDatabase       ErrorCode = "DATABASE"         // underlying store fault
	ErrUnknown        ErrorCode = "UNKNOWN"
)

// AppError represents a structured error with code, message, and details.
// Cause is kept for logging and never rendered to callers.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidation creates an error for malformed input or a rejected mutation.
func NewValidation(msg string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: msg,
	}
}

// NewNotFound creates an error for an absent entity.
func NewNotFound(kind string, identifier any) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found: %v", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewConflict creates an error for uniqueness violations.
func NewConflict(msg string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: msg,
	}
}

// NewDataIntegrity creates an error for corruption discovered mid-operation.
func NewDataIntegrity(msg string) *AppError {
	return &AppError{
		Code:    ErrDataIntegrity,
		Message: msg,
	}
}

// NewFolderNotEmpty creates an error for a blocked non-cascading delete.
func NewFolderNotEmpty(folderID int64, childFolders, hostRules int) *AppError {
	return &AppError{
		Code:    ErrFolderNotEmpty,
		Message: fmt.Sprintf("folder %d is not empty: %d child folders, %d host rules", folderID, childFolders, hostRules),
		Details: map[string]any{
			"folder_id":     folderID,
			"child_folders": childFolders,
			"host_rules":    hostRules,
		},
	}
}

// NewDatabase wraps a store fault. The message stays generic so storage
// internals never reach callers; the cause is available through Unwrap.
func NewDatabase(err error) *AppError {
	return &AppError{
		Code:    ErrDatabase,
		Message: "database error",
		Cause:   err,
	}
}

// NewUnknown wraps an unexpected error.
func NewUnknown(err error) *AppError {
	return &AppError{
		Code:    ErrUnknown,
		Message: "unexpected error",
		Cause:   err,
	}
}

// Is checks if an error is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of an AppError, or ErrUnknown for anything else.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrUnknown
}

// Wrap converts an arbitrary error into an AppError. AppErrors pass through.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewUnknown(err)
}

// Internal reports whether the error is a store or unknown fault that should
// be logged with its cause.
func Internal(err error) bool {
	code := CodeOf(err)
	return code == ErrDatabase || code == ErrUnknown
}
