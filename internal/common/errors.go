// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDatabaseCorrupted = errors.New("database corrupted")
	ErrDatabaseBusy      = errors.New("database busy")

	// Pricing errors. Each one is fatal for the transaction being validated.
	ErrInvalidTierFormat        = errors.New("invalid tier format")
	ErrNoPricingFound           = errors.New("no pricing found")
	ErrUnsupportedBillingPeriod = errors.New("unsupported billing period")
	ErrOverlapExceedsDuration   = errors.New("overlap exceeds license duration")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrDatabaseBusy) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}

// IsPricingError reports whether err means the transaction itself cannot be priced,
// as opposed to an infrastructure failure.
func IsPricingError(err error) bool {
	return errors.Is(err, ErrInvalidTierFormat) ||
		errors.Is(err, ErrNoPricingFound) ||
		errors.Is(err, ErrUnsupportedBillingPeriod) ||
		errors.Is(err, ErrOverlapExceedsDuration)
}
