package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrInvalidInput
	ErrDuplicatePayment
	ErrAlreadyRefunded
	ErrPersistence
	ErrInternal
)

// StatusCode maps the error code to an HTTP status for the error middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrDuplicatePayment, ErrAlreadyRefunded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func InvalidInput(message string, err error) *AppError {
	return &AppError{
		Code:    ErrInvalidInput,
		Message: message,
		Err:     err,
	}
}

// DuplicatePayment signals the at-most-one-payment-per-booking guard fired.
func DuplicatePayment(bookingID string) *AppError {
	return &AppError{
		Code:    ErrDuplicatePayment,
		Message: fmt.Sprintf("booking %s is already paid", bookingID),
	}
}

func AlreadyRefunded(bookingID string) *AppError {
	return &AppError{
		Code:    ErrAlreadyRefunded,
		Message: fmt.Sprintf("booking %s is already refunded", bookingID),
	}
}

// Persistence wraps a storage failure. Safe for the caller to retry: the
// duplicate-payment guard rejects a replay of an already-committed payment.
func Persistence(err error) *AppError {
	return &AppError{
		Code:    ErrPersistence,
		Message: "storage operation failed",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}
