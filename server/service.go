package server

import (
	"context"
	"errors"
	"io"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/inferstore/gateway"
	"github.com/jonwraymond/inferstore/observe"
	"github.com/jonwraymond/inferstore/upstream"
)

const methodStreamInfer = "/inference.GRPCInferenceService/ModelStreamInfer"

// Service implements the Triton GRPCInferenceService on top of a
// gateway.Controller.
type Service struct {
	triton.UnimplementedGRPCInferenceServiceServer

	ctrl     *gateway.Controller
	upstream upstream.Client
	mw       *observe.Middleware
	logger   observe.Logger
	info     Info
}

// NewService creates the service. The upstream used for admin RPCs is the
// controller's.
func NewService(ctrl *gateway.Controller, opts ...Option) *Service {
	o := newOptions(opts)
	return &Service{
		ctrl:     ctrl,
		upstream: ctrl.Upstream(),
		mw:       o.middleware,
		logger:   o.logger,
		info:     o.info,
	}
}

func (s *Service) ModelInfer(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	resp, err := s.ctrl.ModelInfer(ctx, req)
	return resp, gateway.StatusError(err)
}

func (s *Service) ModelConfig(ctx context.Context, req *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error) {
	resp, err := s.ctrl.ModelConfig(ctx, req)
	return resp, gateway.StatusError(err)
}

// ModelStreamInfer resolves each message like ModelInfer, in order. A
// failed message is answered with error_message and the stream continues.
func (s *Service) ModelStreamInfer(stream triton.GRPCInferenceService_ModelStreamInferServer) error {
	ctx := stream.Context()
	call := s.mw.Wrap(func(ctx context.Context, _ observe.CallMeta, req any) (any, error) {
		resp, err := s.ctrl.ModelInfer(ctx, req.(*triton.ModelInferRequest))
		return resp, gateway.StatusError(err)
	})
	streamID := requestID(ctx)

	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		meta := callMeta(methodStreamInfer, req)
		meta.RequestID = streamID
		out := &triton.ModelStreamInferResponse{}
		resp, err := call(ctx, meta, req)
		if err != nil {
			out.ErrorMessage = status.Convert(err).Message()
		} else {
			out.InferResponse = resp.(*triton.ModelInferResponse)
		}
		if err := stream.Send(out); err != nil {
			return err
		}
	}
}

func (s *Service) ServerLive(ctx context.Context, req *triton.ServerLiveRequest) (*triton.ServerLiveResponse, error) {
	return passThrough(s, ctx, "ServerLive", req, s.upstream.ServerLive, func() *triton.ServerLiveResponse {
		return &triton.ServerLiveResponse{Live: true}
	})
}

func (s *Service) ServerReady(ctx context.Context, req *triton.ServerReadyRequest) (*triton.ServerReadyResponse, error) {
	return passThrough(s, ctx, "ServerReady", req, s.upstream.ServerReady, func() *triton.ServerReadyResponse {
		return &triton.ServerReadyResponse{Ready: true}
	})
}

func (s *Service) ModelReady(ctx context.Context, req *triton.ModelReadyRequest) (*triton.ModelReadyResponse, error) {
	return passThrough(s, ctx, "ModelReady", req, s.upstream.ModelReady, func() *triton.ModelReadyResponse {
		return &triton.ModelReadyResponse{Ready: true}
	})
}

func (s *Service) ServerMetadata(ctx context.Context, req *triton.ServerMetadataRequest) (*triton.ServerMetadataResponse, error) {
	return passThrough(s, ctx, "ServerMetadata", req, s.upstream.ServerMetadata, func() *triton.ServerMetadataResponse {
		return &triton.ServerMetadataResponse{Name: s.info.Name, Version: s.info.Version}
	})
}

func (s *Service) ModelMetadata(ctx context.Context, req *triton.ModelMetadataRequest) (*triton.ModelMetadataResponse, error) {
	return passThrough(s, ctx, "ModelMetadata", req, s.upstream.ModelMetadata, func() *triton.ModelMetadataResponse {
		resp := &triton.ModelMetadataResponse{Name: req.GetName(), Platform: s.info.Name}
		if v := req.GetVersion(); v != "" {
			resp.Versions = []string{v}
		}
		return resp
	})
}

// passThrough forwards an admin call when an upstream is configured. An
// offline or unavailable upstream yields the static answer; any other
// upstream error is returned as is.
func passThrough[Req, Resp any](s *Service, ctx context.Context, name string, req Req,
	forward func(context.Context, Req) (Resp, error), static func() Resp) (Resp, error) {
	if s.ctrl.Offline() {
		return static(), nil
	}
	resp, err := forward(ctx, req)
	if err == nil {
		return resp, nil
	}
	if upstream.IsUnavailable(err) {
		s.logger.Debug(ctx, "upstream unavailable, answering statically",
			observe.F("rpc", name),
			observe.F("error", err),
		)
		return static(), nil
	}
	var zero Resp
	return zero, gateway.StatusError(err)
}

var _ triton.GRPCInferenceServiceServer = (*Service)(nil)
