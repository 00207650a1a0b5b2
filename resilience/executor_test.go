package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_NoPatterns(t *testing.T) {
	e := NewExecutor()
	called := false
	err := e.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Execute() = %v, called = %v", err, called)
	}
	if e.CircuitBreaker() != nil {
		t.Error("CircuitBreaker() should be nil")
	}
}

func TestExecutor_RetryStopsWhenCircuitOpens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Millisecond,
			RetryIf:      func(err error) bool { return errors.Is(err, errUnreachable) },
		})),
	)

	attempts := 0
	err := e.Execute(context.Background(), func(context.Context) error {
		attempts++
		return errUnreachable
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if e.CircuitBreaker() != cb {
		t.Error("CircuitBreaker() did not return the configured breaker")
	}
}

func TestExecutor_TimeoutPerAttempt(t *testing.T) {
	e := NewExecutor(WithTimeout(10 * time.Millisecond))
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestExecutor_RateLimiterOutermost(t *testing.T) {
	e := NewExecutor(
		WithRateLimiter(NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})),
		WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: 1})),
	)
	ctx := context.Background()
	if err := e.Execute(ctx, succeeding); err != nil {
		t.Fatal(err)
	}
	err := e.Execute(ctx, succeeding)
	if !errors.Is(err, ErrRateLimitExceeded) || !IsRejection(err) {
		t.Errorf("Execute() error = %v, want rate limit rejection", err)
	}
}

func TestDo(t *testing.T) {
	e := NewExecutor(WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})))
	attempts := 0
	v, err := Do(context.Background(), e, func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "partial", errUnreachable
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Errorf("Do() = %q, %v", v, err)
	}

	v, err = Do(context.Background(), nil, func(context.Context) (string, error) { return "direct", nil })
	if err != nil || v != "direct" {
		t.Errorf("Do(nil executor) = %q, %v", v, err)
	}
}

func TestIsRejection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrCircuitOpen, true},
		{ErrBulkheadFull, true},
		{errors.Join(ErrRateLimitExceeded, context.DeadlineExceeded), true},
		{ErrTimeout, false},
		{errUnreachable, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRejection(tt.err); got != tt.want {
			t.Errorf("IsRejection(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
