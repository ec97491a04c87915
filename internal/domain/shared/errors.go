// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "learner", "question", "progress"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Create", ErrAlreadyExists, "learner already exists")
	ErrInvalidTelegramID    = NewDomainError("learner", "Validate", ErrInvalidID, "invalid Telegram ID")
	ErrLearnerNotActive     = NewDomainError("learner", "CheckStatus", ErrInvalidState, "learner is not subscribed")
	ErrInvalidDeliveryTime  = NewDomainError("learner", "Validate", ErrInvalidFormat, "delivery time must be HH:MM")
	ErrInvalidTimezone      = NewDomainError("learner", "Validate", ErrInvalidInput, "unknown timezone")
	ErrInvalidDifficulty    = NewDomainError("learner", "Validate", ErrInvalidInput, "unknown difficulty level")
	ErrInvalidTargetScore   = NewDomainError("learner", "Validate", ErrValueOutOfRange, "target score must be 10-990")
)

// Question domain errors
var (
	ErrQuestionNotFound = NewDomainError("question", "Find", ErrNotFound, "question not found")
	ErrInvalidChoice    = NewDomainError("question", "Validate", ErrInvalidInput, "answer must be one of A, B, C, D")
	ErrInvalidPart      = NewDomainError("question", "Validate", ErrValueOutOfRange, "TOEIC part must be 1-7")
	ErrInvalidCategory  = NewDomainError("question", "Validate", ErrInvalidInput, "unknown question category")
)

// Response domain errors
var (
	ErrResponseNotFound = NewDomainError("response", "Find", ErrNotFound, "response not found")
	ErrEmptyAnswer      = NewDomainError("response", "Validate", ErrEmptyValue, "answer cannot be empty")
)

// Progress domain errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "no progress recorded for this day")
)

// External service errors
var (
	ErrGenerationUnavailable     = NewDomainError("generation", "Request", ErrServiceUnavailable, "lesson generation service is unavailable")
	ErrGenerationRateLimited     = NewDomainError("generation", "Request", ErrRateLimited, "lesson generation rate limit exceeded")
	ErrGenerationInvalidResponse = NewDomainError("generation", "Parse", ErrInvalidFormat, "invalid response from generation service")
	ErrAudioSynthesisFailed      = NewDomainError("audio", "Synthesize", ErrExternalService, "audio synthesis failed")
	ErrTelegramAPIFailed         = NewDomainError("telegram", "Send", ErrExternalService, "Telegram API request failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
