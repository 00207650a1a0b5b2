package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/inferstore/resilience"
)

func ExampleNewCircuitBreaker() {
	errDown := errors.New("upstream down")
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errDown })
	}
	fmt.Println("State:", cb.State())

	err := cb.Execute(ctx, func(context.Context) error { return nil })
	fmt.Println("Rejected:", errors.Is(err, resilience.ErrCircuitOpen))
	// Output:
	// State: open
	// Rejected: true
}

func ExampleDo() {
	exec := resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
		})),
		resilience.WithTimeout(time.Second),
	)

	attempts := 0
	v, err := resilience.Do(context.Background(), exec, func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "y=[2,4,6]", nil
	})
	fmt.Println(v, err, attempts)
	// Output:
	// y=[2,4,6] <nil> 2
}
