package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes application errors for the HTTP boundary.
type ErrorType string

const (
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeUnauthorized     ErrorType = "unauthorized"
	ErrorTypeInternal         ErrorType = "internal"
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
)

// AppError is the base error type for application errors.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFoundf creates a not found error with formatting.
func NotFoundf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a validation error with formatting.
func Validationf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeValidation, Message: fmt.Sprintf(format, args...)}
}

// WrapValidation wraps an error as a validation error.
func WrapValidation(message string, err error) error {
	return &AppError{Type: ErrorTypeValidation, Message: message, Err: err}
}

// Conflictf creates a conflict error with formatting.
func Conflictf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) error {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message}
}

// MethodNotAllowed creates a method not allowed error.
func MethodNotAllowed(method string) error {
	return &AppError{Type: ErrorTypeMethodNotAllowed, Message: fmt.Sprintf("method %s not allowed", method)}
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// GetType returns the error type of an error; unclassified errors are
// internal.
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
