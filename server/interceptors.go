package server

import (
	"context"
	"runtime/debug"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/inferstore/observe"
)

// RequestIDHeader is the incoming metadata key naming a call's request id.
const RequestIDHeader = "x-request-id"

func requestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

func callMeta(method string, req any) observe.CallMeta {
	meta := observe.CallMeta{Method: method}
	switch r := req.(type) {
	case *triton.ModelInferRequest:
		meta.Model, meta.Version = r.GetModelName(), r.GetModelVersion()
	case *triton.ModelConfigRequest:
		meta.Model, meta.Version = r.GetName(), r.GetVersion()
	case *triton.ModelReadyRequest:
		meta.Model, meta.Version = r.GetName(), r.GetVersion()
	case *triton.ModelMetadataRequest:
		meta.Model, meta.Version = r.GetName(), r.GetVersion()
	}
	return meta
}

// observeUnary records one span, metric set and log line per unary call.
func observeUnary(mw *observe.Middleware) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		meta := callMeta(info.FullMethod, req)
		meta.RequestID = requestID(ctx)
		call := mw.Wrap(func(ctx context.Context, _ observe.CallMeta, req any) (any, error) {
			return handler(ctx, req)
		})
		return call(ctx, meta, req)
	}
}

// recoverUnary turns a handler panic into codes.Internal.
func recoverUnary(logger observe.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "recovered from panic",
					observe.F("rpc", info.FullMethod),
					observe.F("panic", r),
					observe.F("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func recoverStream(logger observe.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ss.Context(), "recovered from panic",
					observe.F("rpc", info.FullMethod),
					observe.F("panic", r),
					observe.F("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}
