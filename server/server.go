package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"github.com/soheilhy/cmux"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/jonwraymond/inferstore/auth"
	"github.com/jonwraymond/inferstore/observe"
)

// Server serves the inference service and an HTTP handler on one listener.
type Server struct {
	grpc            *grpc.Server
	http            *http.Server
	logger          observe.Logger
	shutdownTimeout time.Duration
}

// NewGRPCServer builds a gRPC server with the interceptor chain
// (recovery, authentication, telemetry) and registers svc.
func NewGRPCServer(svc triton.GRPCInferenceServiceServer, opts ...Option) *grpc.Server {
	o := newOptions(opts)
	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.MaxRecvMsgSize(o.maxMessageBytes),
		grpc.MaxSendMsgSize(o.maxMessageBytes),
		grpc.ChainUnaryInterceptor(
			recoverUnary(o.logger),
			auth.UnaryServerInterceptor(o.authenticator),
			observeUnary(o.middleware),
		),
		grpc.ChainStreamInterceptor(
			recoverStream(o.logger),
			auth.StreamServerInterceptor(o.authenticator),
		),
	}
	serverOpts = append(serverOpts, o.grpcOptions...)

	s := grpc.NewServer(serverOpts...)
	triton.RegisterGRPCInferenceServiceServer(s, svc)
	return s
}

// New creates a Server. handler serves every non-gRPC request.
func New(svc triton.GRPCInferenceServiceServer, handler http.Handler, opts ...Option) *Server {
	o := newOptions(opts)
	return &Server{
		grpc: NewGRPCServer(svc, opts...),
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          o.logger,
		shutdownTimeout: o.shutdownTimeout,
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve multiplexes lis between gRPC and HTTP until ctx is done, then
// drains open calls for up to the shutdown timeout. It closes lis.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	mux := cmux.New(lis)
	httpL := mux.Match(cmux.HTTP1Fast())
	grpcL := mux.Match(cmux.HTTP2(), cmux.HTTP2HeaderField("content-type", "application/grpc"), cmux.Any())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.grpc.Serve(grpcL); !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := s.http.Serve(httpL); !errors.Is(err, http.ErrServerClosed) && !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := mux.Serve(); !isClosed(err) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		_ = lis.Close()
		return nil
	})

	s.logger.Info(ctx, "server started", observe.F("addr", lis.Addr().String()))
	err := g.Wait()
	s.logger.Info(context.Background(), "server stopped")
	return err
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn(ctx, "graceful stop timed out, closing open calls")
		s.grpc.Stop()
	}
	if err := s.http.Shutdown(ctx); err != nil {
		_ = s.http.Close()
	}
}

func isClosed(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed)
}
