// Package upstreamtest runs an in-memory inference server for tests.
package upstreamtest

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// Target is the dial target for a Server. Pair it with DialOptions.
const Target = "passthrough:///bufnet"

const bufSize = 1 << 20

// InferFunc answers a ModelInfer call.
type InferFunc func(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error)

// Server is a fake inference server listening on a bufconn listener.
type Server struct {
	triton.UnimplementedGRPCInferenceServiceServer

	lis *bufconn.Listener
	srv *grpc.Server

	inferCalls  atomic.Int64
	configCalls atomic.Int64
	liveCalls   atomic.Int64

	mu    sync.RWMutex
	infer InferFunc
	once  sync.Once
}

// Start serves a fake with Echo behaviour until the test ends.
func Start(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		lis:   bufconn.Listen(bufSize),
		srv:   grpc.NewServer(),
		infer: Echo,
	}
	triton.RegisterGRPCInferenceServiceServer(s.srv, s)
	go func() { _ = s.srv.Serve(s.lis) }()
	tb.Cleanup(s.Stop)
	return s
}

// DialOptions connect a client to this server.
func (s *Server) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// SetInfer replaces the ModelInfer behaviour.
func (s *Server) SetInfer(fn InferFunc) {
	s.mu.Lock()
	s.infer = fn
	s.mu.Unlock()
}

// Stop shuts the server down. Later calls from clients fail as unreachable.
func (s *Server) Stop() {
	s.once.Do(func() {
		s.srv.Stop()
		_ = s.lis.Close()
	})
}

// InferCalls returns how many ModelInfer calls reached the server.
func (s *Server) InferCalls() int64 { return s.inferCalls.Load() }

// ConfigCalls returns how many ModelConfig calls reached the server.
func (s *Server) ConfigCalls() int64 { return s.configCalls.Load() }

// LiveCalls returns how many ServerLive calls reached the server.
func (s *Server) LiveCalls() int64 { return s.liveCalls.Load() }

func (s *Server) ModelInfer(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	s.inferCalls.Add(1)
	s.mu.RLock()
	fn := s.infer
	s.mu.RUnlock()
	return fn(ctx, req)
}

func (s *Server) ModelConfig(ctx context.Context, req *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error) {
	s.configCalls.Add(1)
	return &triton.ModelConfigResponse{
		Config: &triton.ModelConfig{Name: req.Name, Platform: "upstreamtest", MaxBatchSize: 8},
	}, nil
}

func (s *Server) ServerLive(ctx context.Context, req *triton.ServerLiveRequest) (*triton.ServerLiveResponse, error) {
	s.liveCalls.Add(1)
	return &triton.ServerLiveResponse{Live: true}, nil
}

func (s *Server) ServerReady(ctx context.Context, req *triton.ServerReadyRequest) (*triton.ServerReadyResponse, error) {
	return &triton.ServerReadyResponse{Ready: true}, nil
}

func (s *Server) ModelReady(ctx context.Context, req *triton.ModelReadyRequest) (*triton.ModelReadyResponse, error) {
	return &triton.ModelReadyResponse{Ready: req.Name != ""}, nil
}

func (s *Server) ServerMetadata(ctx context.Context, req *triton.ServerMetadataRequest) (*triton.ServerMetadataResponse, error) {
	return &triton.ServerMetadataResponse{Name: "upstreamtest", Version: "2.0.0", Extensions: []string{"classification"}}, nil
}

func (s *Server) ModelMetadata(ctx context.Context, req *triton.ModelMetadataRequest) (*triton.ModelMetadataResponse, error) {
	return &triton.ModelMetadataResponse{Name: req.Name, Versions: []string{"1"}, Platform: "upstreamtest"}, nil
}

// Echo answers every requested output (or a single "output") with a copy of
// the first input tensor.
func Echo(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	resp := &triton.ModelInferResponse{
		ModelName:    req.ModelName,
		ModelVersion: req.ModelVersion,
		Id:           req.Id,
	}
	if len(req.Inputs) == 0 {
		return resp, nil
	}
	in := req.Inputs[0]

	names := make([]string, 0, len(req.Outputs))
	for _, o := range req.Outputs {
		names = append(names, o.Name)
	}
	if len(names) == 0 {
		names = append(names, "output")
	}

	for _, name := range names {
		out := &triton.ModelInferResponse_InferOutputTensor{
			Name:     name,
			Datatype: in.Datatype,
			Shape:    append([]int64(nil), in.Shape...),
		}
		if len(req.RawInputContents) > 0 {
			resp.RawOutputContents = append(resp.RawOutputContents, append([]byte(nil), req.RawInputContents[0]...))
		} else {
			out.Contents = in.Contents
		}
		resp.Outputs = append(resp.Outputs, out)
	}
	return resp, nil
}
