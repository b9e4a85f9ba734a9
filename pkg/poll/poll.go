// Package poll provides a generic "poll until done" utility with an
// explicit, swappable policy instead of ad hoc sleep loops.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes how often and how long to poll.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy polls every 5 seconds for up to 10 minutes.
func DefaultPolicy() Policy {
	return Policy{Interval: 5 * time.Second, MaxAttempts: 120}
}

// ErrExhausted is returned when the predicate never succeeded within the
// policy's attempt budget.
var ErrExhausted = errors.New("poll attempts exhausted")

// ErrNotReady signals that the polled condition has not been met yet and
// the poll should continue.
var ErrNotReady = errors.New("not ready")

// Until invokes fn per the policy until it returns nil, returns a
// non-retryable error, the context is canceled, or attempts run out.
// fn should return ErrNotReady (or wrap it) to request another attempt.
func Until(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPolicy().Interval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	// MaxRetries counts retries after the first attempt.
	backoff := retry.WithMaxRetries(uint64(policy.MaxAttempts-1), retry.NewConstant(policy.Interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if errors.Is(err, ErrNotReady) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return fmt.Errorf("%w after %d attempts", ErrExhausted, policy.MaxAttempts)
		}
		return err
	}
	return nil
}
