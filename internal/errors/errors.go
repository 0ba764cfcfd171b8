// Package errors defines the service error taxonomy and its HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a ServiceError.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodePaymentDeclined    ErrorCode = "PAYMENT_DECLINED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error that knows which HTTP status it maps to.
type ServiceError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches extra context to the error.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError around an underlying cause.
func Wrap(err error, code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// =============================================================================
// Constructors
// =============================================================================

// Validation reports bad input (400).
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// NotFound reports a missing resource (404).
func NotFound(message string) *ServiceError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// Conflict reports a duplicate or already-applied operation (409).
func Conflict(message string) *ServiceError {
	return New(CodeConflict, message, http.StatusConflict)
}

// PaymentDeclined reports a card-level processor failure (402).
func PaymentDeclined(message string, cause error) *ServiceError {
	return Wrap(cause, CodePaymentDeclined, message, http.StatusPaymentRequired)
}

// ServiceUnavailable reports an unconfigured downstream dependency (503).
func ServiceUnavailable(message string) *ServiceError {
	return New(CodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// Internal wraps an unexpected failure (500).
func Internal(message string, cause error) *ServiceError {
	return Wrap(cause, CodeInternal, message, http.StatusInternalServerError)
}

// RateLimitExceeded reports a throttled client (429).
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimitExceeded,
		fmt.Sprintf("Rate limit exceeded: %d requests per %s", limit, window),
		http.StatusTooManyRequests)
}

// =============================================================================
// Helpers
// =============================================================================

// GetServiceError extracts a ServiceError from err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus returns the status err maps to, defaulting to 500.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
