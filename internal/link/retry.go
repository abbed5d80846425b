package link

import (
	"context"
	"fmt"
	"time"
)

// RetryOutcome tags how a retry loop ended.
type RetryOutcome int

const (
	// RetrySucceeded means one attempt returned nil.
	RetrySucceeded RetryOutcome = iota

	// RetryExhausted means every attempt failed.
	RetryExhausted

	// RetryCancelled means the context ended before an attempt succeeded.
	RetryCancelled
)

// String returns the outcome's name.
func (o RetryOutcome) String() string {
	switch o {
	case RetrySucceeded:
		return "succeeded"
	case RetryExhausted:
		return "exhausted"
	case RetryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RetryPolicy is a fixed-delay, bounded retry policy.
type RetryPolicy struct {
	// Attempts is the total number of attempts, at least 1.
	Attempts int

	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// RetryResult reports how Retry ended.
type RetryResult struct {
	Outcome  RetryOutcome
	Attempts int

	// Err is the last attempt's error, wrapped with ErrRetryExhausted or the
	// context error. Nil on success.
	Err error
}

// OK reports whether an attempt succeeded.
func (r RetryResult) OK() bool {
	return r.Outcome == RetrySucceeded
}

// Retry calls fn until it returns nil or the policy's attempts are used up,
// sleeping Delay between attempts. Attempts are independent; fn receives the
// 1-based attempt number.
//
// Parameters:
//   - ctx: Cancels the remaining attempts and any pending delay
//   - policy: Attempt bound and delay
//   - fn: The operation to attempt
//
// Returns:
//   - RetryResult: Tagged outcome with the attempt count and last error
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) RetryResult {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult{Outcome: RetryCancelled, Attempts: attempt - 1, Err: cancelErr(err, lastErr)}
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return RetryResult{Outcome: RetrySucceeded, Attempts: attempt}
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return RetryResult{Outcome: RetryCancelled, Attempts: attempt, Err: cancelErr(ctx.Err(), lastErr)}
		case <-timer.C:
		}
	}

	return RetryResult{
		Outcome:  RetryExhausted,
		Attempts: attempts,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr),
	}
}

func cancelErr(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %w)", ctxErr, lastErr)
}
