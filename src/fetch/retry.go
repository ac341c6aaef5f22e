package fetch

import (
	"time"

	"ghtrace/src/source"
)

// Policy decides whether a failed request should be retried and after how
// long. It is a pure function of the attempt count and the error, so it can
// be tested without a transport or a clock.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles on
	// every further attempt.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff. An upstream retry-after hint
	// overrides the cap.
	MaxDelay time.Duration
}

// DefaultPolicy is tuned for the GitHub API's rate-limit budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the backoff to wait before retrying after the given failed
// attempt (1-based), and whether to retry at all. Non-retryable errors and
// exhausted attempts return false.
func (p Policy) Delay(attempt int, err error) (time.Duration, bool) {
	if !source.Retryable(err) {
		return 0, false
	}
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	// A rate-limit reset hint from the upstream beats our own schedule.
	if hint := source.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	return delay, true
}
