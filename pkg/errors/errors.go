package errors

import (
	"errors"
	"fmt"
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
	ErrCodeNotFound ErrorCode = iota + 1000
	ErrCodeBadRequest
	ErrCodeConflict
	ErrCodeUnprocessable
	ErrCodeInternal
)

// Sentinel errors for the lifecycle engine. Callers match them with
// errors.Is after any amount of wrapping.
var (
	// ErrNotFound means the referenced appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrStaleWrite means the stored version advanced between the read
	// and the write. The caller may reload and retry.
	ErrStaleWrite = errors.New("stale write: version conflict")

	// ErrConflict is surfaced after StaleWrite retries are exhausted.
	ErrConflict = errors.New("conflict: concurrent modification")

	// ErrCompletionTooEarly rejects completing a session before its
	// scheduled start.
	ErrCompletionTooEarly = errors.New("cannot complete a session before its scheduled start")
)

// InvalidTransitionError is returned when a requested status change is not
// in the legal transition table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// NewInvalidTransition builds an InvalidTransitionError for the given pair.
func NewInvalidTransition(from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

// InvalidTimeRangeError is returned when a reschedule target is malformed
// or lies in the past.
type InvalidTimeRangeError struct {
	Reason string
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range: %s", e.Reason)
}

func NewInvalidTimeRange(reason string) *InvalidTimeRangeError {
	return &InvalidTimeRangeError{Reason: reason}
}

// PolicyComputationError indicates malformed monetary input reaching the
// cancellation policy. It points at upstream data corruption and is never
// retried.
type PolicyComputationError struct {
	Amount string
}

func (e *PolicyComputationError) Error() string {
	return fmt.Sprintf("policy computation failed for amount %s", e.Amount)
}

// Error constructors in the HTTP-facing AppError shape
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}
