package upstream

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/inferstore/resilience"
)

var (
	// ErrUnreachable indicates the inference server could not be reached.
	ErrUnreachable = errors.New("upstream: unreachable")

	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("upstream: timeout")

	// ErrNotConfigured indicates no upstream target is configured.
	ErrNotConfigured = errors.New("upstream: not configured")
)

// ModelError is an error status returned by the inference server itself.
// Its code and message are passed back to the caller unchanged and the
// response is never cached.
type ModelError struct {
	Code    codes.Code
	Message string

	st *status.Status
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("upstream: model error: %s: %s", e.Code, e.Message)
}

// GRPCStatus returns the status the server sent, details included.
func (e *ModelError) GRPCStatus() *status.Status {
	if e.st != nil {
		return e.st
	}
	return status.New(e.Code, e.Message)
}

// IsUnavailable reports whether err means the upstream could not answer
// (unreachable or timed out), as opposed to answering with an error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}

// Classify maps an error from a gRPC call into the upstream taxonomy.
// It is idempotent. Caller cancellation is returned as context.Canceled.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var me *ModelError
	if IsUnavailable(err) || errors.Is(err, ErrNotConfigured) || errors.As(err, &me) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, resilience.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case resilience.IsRejection(err):
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrUnreachable, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrTimeout, st.Message())
	case codes.Canceled:
		return fmt.Errorf("upstream: %w", context.Canceled)
	default:
		return &ModelError{Code: st.Code(), Message: st.Message(), st: st}
	}
}
