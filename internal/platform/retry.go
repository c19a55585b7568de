package platform

import "time"

// RetryPolicy controls how many delivery attempts a command gets and how
// long to wait between them. The delay doubles with each failed attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt. Subsequent
	// waits double: BaseDelay, 2*BaseDelay, 4*BaseDelay, ...
	BaseDelay time.Duration
}

// DefaultRetryPolicy matches the delivery budget used for power commands.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Backoff returns the wait before retrying after the given zero-based
// attempt number.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}
