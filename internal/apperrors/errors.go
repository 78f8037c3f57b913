package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

// These sentinel errors define the pipeline's error taxonomy. Terminal
// conditions (Forbidden, InvalidSignature, MalformedPayload) short-circuit
// before any mutation; Duplicate and LimitExceeded are normal skip/drop
// outcomes, not failures.
var (
	// ErrForbidden indicates an unknown tenant identifier or missing WhatsApp config.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidSignature indicates a payload signature mismatch.
	ErrInvalidSignature = errors.New("invalid payload signature")
	// ErrMalformedPayload indicates a structurally invalid webhook body.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrQueue indicates a general queue communication error.
	ErrQueue = errors.New("queue communication error")
	// ErrUpstream indicates a transient failure talking to the Graph API or storage backend.
	ErrUpstream = errors.New("upstream failure")
	// ErrDuplicate indicates a conflict due to duplicate data (e.g., unique constraint).
	ErrDuplicate = errors.New("duplicate resource")
	// ErrLimitExceeded indicates a tenant exceeded its subscription limit.
	ErrLimitExceeded = errors.New("subscription limit exceeded")
	// ErrBadRequest indicates a malformed or invalid request from the caller.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timeout")
)

// --- Helper functions for checking ---

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// --- Specific Standard Error Checkers ---

// IsForbiddenError checks if the error is or wraps ErrForbidden.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidSignatureError checks if the error is or wraps ErrInvalidSignature.
func IsInvalidSignatureError(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

// IsMalformedPayloadError checks if the error is or wraps ErrMalformedPayload.
func IsMalformedPayloadError(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsUpstreamError checks if the error is or wraps ErrUpstream.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsLimitExceededError checks if the error is or wraps ErrLimitExceeded.
func IsLimitExceededError(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

// IsTimeoutError checks if the error is or wraps ErrTimeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}
