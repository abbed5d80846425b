package link

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), RetryPolicy{Attempts: 10, Delay: time.Hour}, func(context.Context, int) error {
		calls++
		return nil
	})

	if !result.OK() || result.Attempts != 1 || calls != 1 {
		t.Errorf("result = %+v, calls = %d, want success after 1", result, calls)
	}
	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
}

func TestRetry_SucceedsOnLaterAttempt(t *testing.T) {
	var seen []int
	result := Retry(context.Background(), RetryPolicy{Attempts: 10, Delay: time.Millisecond}, func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 4 {
			return errors.New("not yet")
		}
		return nil
	})

	if !result.OK() || result.Attempts != 4 {
		t.Errorf("result = %+v, want success on attempt 4", result)
	}
	if len(seen) != 4 || seen[0] != 1 || seen[3] != 4 {
		t.Errorf("attempt numbers = %v, want 1..4", seen)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	sentinel := errors.New("out of range")
	calls := 0
	result := Retry(context.Background(), RetryPolicy{Attempts: 10, Delay: time.Millisecond}, func(context.Context, int) error {
		calls++
		return sentinel
	})

	if result.Outcome != RetryExhausted {
		t.Fatalf("Outcome = %v, want exhausted", result.Outcome)
	}
	if calls != 10 || result.Attempts != 10 {
		t.Errorf("calls = %d, Attempts = %d, want 10", calls, result.Attempts)
	}
	if !errors.Is(result.Err, ErrRetryExhausted) || !errors.Is(result.Err, sentinel) {
		t.Errorf("Err = %v, want ErrRetryExhausted wrapping the last error", result.Err)
	}
}

func TestRetry_DelayBetweenAttemptsOnly(t *testing.T) {
	const delay = 20 * time.Millisecond
	start := time.Now()
	Retry(context.Background(), RetryPolicy{Attempts: 3, Delay: delay}, func(context.Context, int) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)

	// Two pauses for three attempts.
	if elapsed < 2*delay {
		t.Errorf("elapsed = %v, want at least %v", elapsed, 2*delay)
	}
	if elapsed > 3*delay+200*time.Millisecond {
		t.Errorf("elapsed = %v, a pause after the last attempt is suspected", elapsed)
	}
}

func TestRetry_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := Retry(ctx, RetryPolicy{Attempts: 10, Delay: time.Hour}, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	if result.Outcome != RetryCancelled {
		t.Fatalf("Outcome = %v, want cancelled", result.Outcome)
	}
	if calls != 1 || result.Attempts != 1 {
		t.Errorf("calls = %d, Attempts = %d, want 1", calls, result.Attempts)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
}

func TestRetry_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := Retry(ctx, RetryPolicy{Attempts: 3}, func(context.Context, int) error {
		calls++
		return nil
	})

	if result.Outcome != RetryCancelled || calls != 0 {
		t.Errorf("result = %+v, calls = %d, want cancelled without attempts", result, calls)
	}
}

func TestRetry_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), RetryPolicy{}, func(context.Context, int) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 || result.Outcome != RetryExhausted {
		t.Errorf("calls = %d, outcome = %v, want 1 exhausted attempt", calls, result.Outcome)
	}
}

func TestRetryOutcome_String(t *testing.T) {
	for outcome, want := range map[RetryOutcome]string{
		RetrySucceeded:   "succeeded",
		RetryExhausted:   "exhausted",
		RetryCancelled:   "cancelled",
		RetryOutcome(42): "unknown",
	} {
		if got := outcome.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
