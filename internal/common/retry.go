package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with an explicit retry decision.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Transient marks err as worth another attempt.
func Transient(err error) error { return &RetryableError{Err: err, Retryable: true} }

// Permanent marks err as final; Retry returns it immediately.
func Permanent(err error) error { return &RetryableError{Err: err, Retryable: false} }

// IsRetryable reports whether err is worth another attempt. Rate limits and
// deadlines always are; otherwise only a RetryableError can say yes.
func IsRetryable(err error) bool {
	if IsFatal(err) {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var decided *RetryableError
	return errors.As(err, &decided) && decided.Retryable
}

// RetryPolicy bounds a retry loop. Attempt n (1-based) that fails waits
// Delay * Multiplier^(n-1), capped at MaxDelay. A rate-limit error jumps
// straight to MaxDelay.
type RetryPolicy struct {
	Attempts   int
	Delay      time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 100 * time.Millisecond
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = max(p.Delay, 30*time.Second)
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// wait returns the pause after the given failed attempt.
func (p RetryPolicy) wait(attempt int, err error) time.Duration {
	if errors.Is(err, ErrRateLimit) {
		return p.MaxDelay
	}
	d := float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Retry runs op until it succeeds or the policy gives up. Fatal and
// permanent errors stop the loop at once.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	policy = policy.normalized()

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var decided *RetryableError
		if IsFatal(err) || (errors.As(err, &decided) && !decided.Retryable) {
			return err
		}
		if attempt >= policy.Attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		pause := policy.wait(attempt, err)
		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.Attempts,
			"delay", pause,
			"error", err)

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
