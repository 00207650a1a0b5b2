// Package resilience guards calls to the upstream inference server.
//
// # Patterns
//
//   - Circuit Breaker: stops forwarding after repeated connectivity
//     failures so an unreachable upstream fails fast instead of tying up
//     every request for the full deadline.
//
//   - Retry: retries failed attempts with exponential, linear or constant
//     backoff. Callers decide which errors are retryable.
//
//   - Rate Limiter: a token bucket in front of the upstream.
//
//   - Bulkhead: caps concurrent upstream calls.
//
//   - Timeout: a per-attempt deadline, reported as ErrTimeout.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 30 * time.Second,
//	        IsFailure:    isConnectivityError,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	resp, err := resilience.Do(ctx, exec, func(ctx context.Context) (*Response, error) {
//	    return client.ModelInfer(ctx, req)
//	})
//
// Errors produced by the guards themselves (open circuit, exhausted rate
// limit, full bulkhead) satisfy IsRejection; the operation was not attempted.
package resilience
