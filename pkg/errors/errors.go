// Package errors defines the error taxonomy shared by the package loader.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeFormat            = "FORMAT_ERROR"
	CodeVersion           = "VERSION_ERROR"
	CodeIO                = "IO_ERROR"
	CodeImportResolution  = "IMPORT_RESOLUTION_ERROR"
	CodeSizeMismatch      = "SIZE_MISMATCH"
	CodeClassConstruction = "CLASS_CONSTRUCTION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConfigError       = "CONFIG_ERROR"
	CodeStorageError      = "STORAGE_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
)

// AppError represents an error with a code and message.
type AppError struct {
	Code    string
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

// Is reports whether target carries the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Sentinel instances, matched by code through errors.Is.
var (
	ErrFormat            = New(CodeFormat, "malformed package")
	ErrVersion           = New(CodeVersion, "unsupported package version")
	ErrIO                = New(CodeIO, "i/o failure")
	ErrImportResolution  = New(CodeImportResolution, "import could not be resolved")
	ErrSizeMismatch      = New(CodeSizeMismatch, "serial size mismatch")
	ErrClassConstruction = New(CodeClassConstruction, "object construction failed")
	ErrNotFound          = New(CodeNotFound, "resource not found")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
)

// IsFormatError checks if the error is a format error.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsVersionError checks if the error is a version error.
func IsVersionError(err error) bool {
	return errors.Is(err, ErrVersion)
}

// IsIOError checks if the error is an i/o error.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsImportResolutionError checks if the error is an import resolution error.
func IsImportResolutionError(err error) bool {
	return errors.Is(err, ErrImportResolution)
}

// IsSizeMismatch checks if the error is a serial size mismatch.
func IsSizeMismatch(err error) bool {
	return errors.Is(err, ErrSizeMismatch)
}

// IsClassConstructionError checks if the error is a construction error.
func IsClassConstructionError(err error) bool {
	return errors.Is(err, ErrClassConstruction)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal reports whether the error aborts a package load outright.
func IsFatal(err error) bool {
	return IsFormatError(err) || IsVersionError(err) || IsIOError(err) || IsSizeMismatch(err)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
