package common

import "errors"

// Canonical error codes shared across the pricing and settlement core.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeExternal   = "EXTERNAL_DEPENDENCY"
	CodeInternal   = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetails attaches structured details, typically offending identifiers.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// Validation builds a 400-level AppError for rejected input.
func Validation(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, 400, err)
}

// Conflict builds a 409-level AppError for state collisions such as an
// already-assigned order or an already-settled earning.
func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, 409, err)
}

// NotFound builds a 404-level AppError.
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, 404, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
