package auth

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Authenticate checks the credentials in ctx's incoming metadata and
// returns a context carrying the identity. A nil authenticator admits
// every call as anonymous.
func Authenticate(ctx context.Context, a Authenticator, method string) (context.Context, error) {
	if a == nil {
		return WithIdentity(ctx, AnonymousIdentity()), nil
	}

	md, _ := metadata.FromIncomingContext(ctx)
	req := &AuthRequest{Metadata: md, Method: method}
	if !a.Supports(ctx, req) {
		return nil, status.Error(codes.Unauthenticated, ErrMissingCredentials.Error())
	}

	result, err := a.Authenticate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, "auth: "+err.Error())
	}
	if !result.Authenticated {
		msg := ErrInvalidCredentials.Error()
		if result.Error != nil {
			msg = result.Error.Error()
		}
		return nil, status.Error(codes.Unauthenticated, msg)
	}
	return WithIdentity(ctx, result.Identity), nil
}

// UnaryServerInterceptor rejects unary calls without valid credentials.
func UnaryServerInterceptor(a Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := Authenticate(ctx, a, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor rejects streams without valid credentials.
func StreamServerInterceptor(a Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := Authenticate(ss.Context(), a, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }
