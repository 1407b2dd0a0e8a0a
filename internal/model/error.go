package model

import (
	"errors"
	"fmt"
)

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// Error codes shared by the service and the API.
const (
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeWindowExpired          = "WINDOW_EXPIRED"
	ErrCodeExternalChannelFailure = "EXTERNAL_CHANNEL_FAILURE"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeInvalidJSON            = "INVALID_JSON"
	ErrCodeUnauthorised           = "UNAUTHORIZED"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// DomainError is a business-level failure with a stable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so wrapped variants compare equal to the sentinels.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code && (t.Message == e.Message || t.Message == "")
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf builds a domain error with a formatted message.
func Errorf(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an infrastructure failure so it crosses the service boundary as a domain error.
func Internal(message string, err error) *DomainError {
	return &DomainError{Code: ErrCodeInternalError, Message: message, Err: err}
}

// ErrorCode returns the domain code carried by err, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// Common domain errors
var (
	ErrOrderNotFound         = NewDomainError(ErrCodeNotFound, "Order not found")
	ErrProductNotFound       = NewDomainError(ErrCodeNotFound, "Product not found")
	ErrReturnRequestNotFound = NewDomainError(ErrCodeNotFound, "No return request found for this order")
	ErrCannotCancel          = NewDomainError(ErrCodeInvalidTransition, "Order cannot be cancelled after it has been shipped")
	ErrCannotEdit            = NewDomainError(ErrCodeInvalidTransition, "Order can no longer be edited")
	ErrNotDelivered          = NewDomainError(ErrCodeInvalidState, "Only delivered orders can be returned")
	ErrReturnWindowExpired   = NewDomainError(ErrCodeWindowExpired, "Return window has expired")
)

// Kind-only sentinels for errors.Is checks against any message.
var (
	ErrKindNotFound          = &DomainError{Code: ErrCodeNotFound}
	ErrKindInvalidTransition = &DomainError{Code: ErrCodeInvalidTransition}
	ErrKindInvalidState      = &DomainError{Code: ErrCodeInvalidState}
	ErrKindWindowExpired     = &DomainError{Code: ErrCodeWindowExpired}
	ErrKindInvalidRequest    = &DomainError{Code: ErrCodeInvalidRequest}
)
