package upstream

import (
	"context"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
)

// Offline is the Client used when no target is configured. Every call
// fails with ErrNotConfigured.
type Offline struct{}

func (Offline) ModelInfer(context.Context, *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ModelConfig(context.Context, *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ServerLive(context.Context, *triton.ServerLiveRequest) (*triton.ServerLiveResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ServerReady(context.Context, *triton.ServerReadyRequest) (*triton.ServerReadyResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ModelReady(context.Context, *triton.ModelReadyRequest) (*triton.ModelReadyResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ServerMetadata(context.Context, *triton.ServerMetadataRequest) (*triton.ServerMetadataResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) ModelMetadata(context.Context, *triton.ModelMetadataRequest) (*triton.ModelMetadataResponse, error) {
	return nil, ErrNotConfigured
}

func (Offline) Close() error { return nil }

var _ Client = Offline{}
