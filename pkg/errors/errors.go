package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Authorization errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED" // claimed identity mismatch
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"    // not a party to the room/request
	ErrCodeBlocked      ErrorCode = "BLOCKED"      // block relation present

	// Not found errors
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Presence errors
	ErrCodeOffline       ErrorCode = "OFFLINE"        // call target has no registry entry
	ErrCodeTargetOffline ErrorCode = "TARGET_OFFLINE" // relay target went away mid-call

	// Signaling errors
	ErrCodeInvalidState ErrorCode = "INVALID_STATE" // event inapplicable to call state

	// Internal errors
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// Code extracts the ErrorCode from err, or ErrCodeInternal for plain errors
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Message extracts the client-facing message from err.
// Plain errors collapse to a generic message so internals never leak
// to a connection.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal error"
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// Convenience constructors for the realtime error vocabulary.
// Messages match what connected clients display verbatim.

func Unauthorized() *AppError {
	return NewWithStatus(ErrCodeUnauthorized, "Unauthorized", http.StatusUnauthorized)
}

func Forbidden() *AppError {
	return NewWithStatus(ErrCodeForbidden, "Access denied", http.StatusForbidden)
}

func RequestNotFound() *AppError {
	return NewWithStatus(ErrCodeNotFound, "Request not found", http.StatusNotFound)
}

func Blocked(message string) *AppError {
	return NewWithStatus(ErrCodeBlocked, message, http.StatusForbidden)
}

func Offline() *AppError {
	return NewWithStatus(ErrCodeOffline, "User is offline", http.StatusConflict)
}

func TargetOffline() *AppError {
	return NewWithStatus(ErrCodeTargetOffline, "User is offline", http.StatusConflict)
}

func InvalidState(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidState, message, http.StatusConflict)
}

func StoreFailure(message string, err error) *AppError {
	return Wrap(ErrCodeStoreFailure, message, err)
}
