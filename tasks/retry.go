package tasks

import (
	"errors"
	"time"

	"github.com/teilomillet/promptopt/llm"
)

// RetryPolicy decides whether a failed attempt is redelivered and when.
type RetryPolicy struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Retryable classifies errors; nil means llm.IsRetryable.
	Retryable func(error) bool
}

const maxShiftAmount = 30 // Cap at 2^30 to prevent overflow

// DefaultRetryPolicy retries transient provider errors three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		InitialWait: 2 * time.Second,
		MaxWait:     time.Minute,
	}
}

// ShouldRetry reports whether the attempt (0-based) that failed with err gets
// another try. Time-limit failures are final.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	if errors.Is(err, ErrSoftTimeLimit) || errors.Is(err, ErrHardTimeLimit) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return llm.IsRetryable(err)
}

// Delay is the wait before retrying after the given attempt: InitialWait
// doubled per attempt, capped at MaxWait.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialWait * time.Duration(1<<min(max(attempt, 0), maxShiftAmount))
	if p.MaxWait > 0 && delay > p.MaxWait {
		delay = p.MaxWait
	}
	return delay
}
