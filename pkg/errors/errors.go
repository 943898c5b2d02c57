package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Wrap records the underlying cause. The cause is logged, never rendered.
func (e *AppError) Wrap(cause error) *AppError {
	e.cause = cause
	return e
}

func NewError(statusCode int, code, message string) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Message: message}
}

func NewBadRequestError(code, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

func NewUnauthorizedError(code, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

func NewForbiddenError(code, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

func NewNotFoundError(code, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

func NewConflictError(code, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

func NewPayloadTooLargeError(code, message string) *AppError {
	return NewError(http.StatusRequestEntityTooLarge, code, message)
}

func NewRateLimitError(code, message string) *AppError {
	return NewError(http.StatusTooManyRequests, code, message)
}

func NewInternalServerError(code, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError returns err as an AppError. Anything that is not already one
// becomes an opaque 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewInternalServerError("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
}

// Is reports whether err is an AppError carrying target's code.
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
