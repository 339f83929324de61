package checker

import (
	"time"

	"github.com/shelfmark/linkward/internal/domain/linkcheck"
)

// RetryPolicy bounds re-attempts for transient failures. Expressed as an
// explicit attempt counter driven by the runner's loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of fetches allowed per target,
	// including the first.
	MaxAttempts int
	// BaseDelay scales linearly with the attempt number. Deliberately long
	// relative to normal latency so a struggling domain is not hammered.
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second}
}

// ShouldRetry reports whether another attempt is worthwhile. Only failures
// presumed transient qualify; DNS, TLS, and HTTP-level failures are stable
// facts about the target.
func (p RetryPolicy) ShouldRetry(attempt int, status linkcheck.Status) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	switch status {
	case linkcheck.StatusTimeout, linkcheck.StatusConnectionError, linkcheck.StatusUnknown:
		return true
	default:
		return false
	}
}

// Delay returns the linear backoff before the given next attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}
