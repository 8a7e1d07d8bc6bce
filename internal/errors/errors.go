// Package errors provides unified error handling with structured error codes.
// Codes cover both generic failures and the detection-specific taxonomy
// (profile validation, capture availability, template resolution).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes appear verbatim in logs and in
// API error payloads, so they are lowercase snake_case strings.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeInternal        Code = "internal"
	CodeInvalidArgument Code = "invalid_argument"
	CodeNotFound        Code = "not_found"
	CodeUnavailable     Code = "unavailable"
	CodeTimeout         Code = "timeout"
	CodeCancelled       Code = "cancelled"

	// Detection taxonomy.
	CodeProfileInvalid        Code = "profile_invalid"
	CodeCaptureUnavailable    Code = "capture_unavailable"
	CodeTemplateSetUnresolved Code = "template_set_unresolved"
	CodeDetectionRejected     Code = "detection_rejected"
)

// httpStatusMap maps error codes to HTTP status codes for the API boundary.
var httpStatusMap = map[Code]int{
	CodeUnknown:               http.StatusInternalServerError,
	CodeInternal:              http.StatusInternalServerError,
	CodeInvalidArgument:       http.StatusBadRequest,
	CodeNotFound:              http.StatusNotFound,
	CodeUnavailable:           http.StatusServiceUnavailable,
	CodeTimeout:               http.StatusGatewayTimeout,
	CodeCancelled:             http.StatusRequestTimeout,
	CodeProfileInvalid:        http.StatusUnprocessableEntity,
	CodeCaptureUnavailable:    http.StatusServiceUnavailable,
	CodeTemplateSetUnresolved: http.StatusUnprocessableEntity,
	CodeDetectionRejected:     http.StatusUnprocessableEntity,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the corresponding HTTP status code.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the error code from any error, walking the wrap chain.
// Non-AppError chains map to CodeUnknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error (or anything it wraps) has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
// Capture availability is transient by nature: the screen may be locked,
// mid-mode-switch, or the grab tool briefly unresponsive.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeTimeout, CodeCaptureUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatusOf returns the HTTP status for any error.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
