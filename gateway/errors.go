package gateway

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/inferstore/inflight"
	"github.com/jonwraymond/inferstore/upstream"
)

var (
	// ErrInvalidRequest indicates a malformed request. It wraps the
	// validation error.
	ErrInvalidRequest = errors.New("gateway: invalid request")

	// ErrUpstreamUnavailable indicates the upstream was needed but could
	// not answer. It wraps upstream.ErrUnreachable or upstream.ErrTimeout.
	ErrUpstreamUnavailable = errors.New("gateway: upstream unavailable")

	// ErrNoRecording indicates a serve mode miss without an upstream.
	ErrNoRecording = errors.New("gateway: no recording for request")

	// ErrInvalidConfig indicates an unusable controller configuration.
	ErrInvalidConfig = errors.New("gateway: invalid config")
)

// Status maps an error returned by the Controller to a gRPC status.
// Upstream model errors keep their own code and message.
func Status(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var me *upstream.ModelError
	switch {
	case errors.As(err, &me):
		return me.GRPCStatus()
	case errors.Is(err, ErrInvalidRequest):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNoRecording):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, inflight.ErrAborted):
		return status.New(codes.Aborted, err.Error())
	case errors.Is(err, ErrUpstreamUnavailable):
		if errors.Is(err, upstream.ErrTimeout) {
			return status.New(codes.DeadlineExceeded, err.Error())
		}
		return status.New(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.New(codes.Internal, err.Error())
}

// StatusError is Status(err).Err().
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	return Status(err).Err()
}
