package crmsync

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited     = errors.New("crmsync: remote rate limited")
	ErrTransport       = errors.New("crmsync: transport failure")
	ErrInvalidResponse = errors.New("crmsync: invalid remote response")
	ErrRemoteRejected  = errors.New("crmsync: remote rejected request")
	ErrValidation      = errors.New("crmsync: record failed validation")
	ErrUnauthorized    = errors.New("crmsync: remote authentication failed")
	ErrUnsyncedMatches = errors.New("crmsync: unsynced matches pending")
)

// RateLimitCode is the remote error code signalling request throttling
const RateLimitCode = "ZOHO_RATE_LIMIT"

// DefaultRetryAfter is used when a rate limit signal carries no retry hint
const DefaultRetryAfter = 60 * time.Second

// RateLimitError is returned when the remote system refuses a call due to request volume
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

// NewRateLimitError creates a RateLimitError from a retry hint in seconds
func NewRateLimitError(retryAfterSeconds int, message string) *RateLimitError {
	retry := time.Duration(retryAfterSeconds) * time.Second
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	return &RateLimitError{RetryAfter: retry, Message: message}
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s (retry after %s)", ErrRateLimited, e.Message, e.RetryAfter)
}

// Unwrap lets errors.Is match ErrRateLimited
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterOf extracts the retry hint from a rate limit error
func RetryAfterOf(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimited) {
		return DefaultRetryAfter, true
	}
	return 0, false
}
