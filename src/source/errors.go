package source

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized = errors.New("authentication failed")
	ErrNotFound     = errors.New("not found")
)

// RateLimitError reports that the upstream refused the request because the
// rate-limit budget is exhausted. RetryAfter is the upstream's hint, zero
// when it provided none.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransientError wraps a failure worth retrying: timeouts, connection
// resets, 5xx responses.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether err may succeed on a later attempt.
// Rate limits and transient failures are retryable; auth and not-found
// errors are not.
func Retryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var tr *TransientError
	return errors.As(err, &tr)
}

// RetryAfterHint extracts the upstream's retry-after hint from err, or zero.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// UserError wraps errors with user-friendly messages.
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts taxonomy errors to user-friendly messages for the CLI.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrUnauthorized) {
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that your token is valid and has the actions:read scope.\nSet it with --token or the GITHUB_ACCESS_TOKEN environment variable.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrNotFound) {
		return &UserError{
			Message: "Repository or workflow not found",
			Hint:    "Check the --owner and --repo values, and that your token can see the repository.",
			Err:     err,
		}
	}

	return err
}
