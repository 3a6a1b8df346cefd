// Package errors provides the structured error type used across the
// engine and indexer, generalized from the teacher repo's
// pkg/errors.TradSysError to the error kinds §7 of the spec names.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Code identifies one of the error kinds §7 groups into validation,
// resource-limit, authorization, and state/consistency errors.
type Code string

const (
	// Input validation.
	ErrInvalidPrice    Code = "INVALID_PRICE"
	ErrInvalidQuantity Code = "INVALID_QUANTITY"
	ErrAmountZero      Code = "AMOUNT_ZERO"
	ErrInvalidAsset    Code = "INVALID_ASSET"

	// Resource limits.
	ErrTooManyPendingOrders      Code = "TOO_MANY_PENDING_ORDERS"
	ErrTooManyUserOrders         Code = "TOO_MANY_USER_ORDERS"
	ErrTooManyPendingCancellations Code = "TOO_MANY_PENDING_CANCELLATIONS"
	ErrArithmeticOverflow        Code = "ARITHMETIC_OVERFLOW"

	// Authorization.
	ErrNotOrderOwner Code = "NOT_ORDER_OWNER"

	// State / consistency.
	ErrOrderNotFound             Code = "ORDER_NOT_FOUND"
	ErrOrderNotActive            Code = "ORDER_NOT_ACTIVE"
	ErrInsufficientFreeBalance   Code = "INSUFFICIENT_FREE_BALANCE"
	ErrInsufficientLockedBalance Code = "INSUFFICIENT_LOCKED_BALANCE"
)

// Severity classifies how urgently an error needs operator attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the structured error type every core operation returns.
type Error struct {
	Code      Code
	Message   string
	Severity  Severity
	Timestamp time.Time
	File      string
	Line      int
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// WithCause attaches an underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates a new Error with the default severity for its code.
func New(code Code, message string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Code:      code,
		Message:   message,
		Severity:  severityFor(code),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Severity:  severityFor(code),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if As(err, &e) {
		return e.Code == code
	}
	return false
}

// As unwraps err looking for an *Error, mirroring the teacher's
// hand-rolled As (kept rather than std errors.As so Code comparisons
// read the same way the teacher's call sites do).
func As(err error, target **Error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap(), target)
	}
	return false
}

func severityFor(code Code) Severity {
	switch code {
	case ErrArithmeticOverflow, ErrTooManyPendingOrders, ErrTooManyUserOrders, ErrTooManyPendingCancellations:
		return SeverityHigh
	case ErrOrderNotFound, ErrOrderNotActive, ErrNotOrderOwner, ErrInsufficientFreeBalance, ErrInsufficientLockedBalance:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
