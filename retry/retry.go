// Package retry runs model provider calls under the agent's retry budget.
//
// A call is attempted at most 1 + MaxRetries times. Only errors the policy
// classifies as transient are retried, and the last error is returned
// unchanged so callers can still match its kind.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// Policy controls how a call is retried. The zero value allows no retries.
type Policy struct {
	MaxRetries uint
	// Backoff returns the wait before retry number attempt (0-based).
	// Nil means ExponentialBackoff(DefaultBaseDelay, DefaultMaxDelay).
	Backoff func(attempt int) time.Duration
	// Retryable classifies failures. Nil means errors.IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before each wait, with the 1-based number of the
	// attempt that failed.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, int, error) {
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff(DefaultBaseDelay, DefaultMaxDelay)
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		// Compared as uint64 so a MaxRetries near the top of the range
		// cannot wrap the budget.
		if uint64(attempt) > uint64(p.MaxRetries) || !retryable(err) || ctx.Err() != nil {
			return zero, attempt, err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if wait := backoff(attempt - 1); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				// The provider's failure is what the caller asked about.
				return zero, attempt, err
			case <-timer.C:
			}
		}
	}
}

// ExponentialBackoff computes min(base * 2^attempt, max) with ±25% jitter.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt > 30 {
			attempt = 30
		}
		delay := base << uint(attempt)
		if delay > max || delay <= 0 {
			delay = max
		}

		quarter := delay / 4
		if quarter > 0 {
			jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
			delay += jitter
		}
		return delay
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }
