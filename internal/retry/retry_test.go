package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDo_ExhaustsAttemptsAndReturnsError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("always fails")

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))

	if err == nil {
		t.Fatalf("Do: expected error after exhausting attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("Do error = %v, want wrapping %v", err, sentinel)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDo_RetryIfStopsEarly(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent")

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	}, WithMaxAttempts(5), WithRetryIf(func(err error) bool { return false }))

	if err == nil {
		t.Fatalf("Do: expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (should not retry)", attempts)
	}
}

func TestDo_ContextCanceledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error {
		return errors.New("fail")
	}, WithMaxAttempts(3))

	if err == nil {
		t.Fatalf("Do: expected error for canceled context")
	}
}

func TestDo_OnRetryCalledWithAttemptNumber(t *testing.T) {
	var seen []int
	attempts := 0

	_ = Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, next time.Duration) {
			seen = append(seen, attempt)
		}))

	if len(seen) != 2 {
		t.Fatalf("OnRetry called %d times, want 2: %v", len(seen), seen)
	}
	if seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("OnRetry attempts = %v, want [1 2]", seen)
	}
}
