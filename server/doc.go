// Package server exposes the gateway as a Triton GRPCInferenceService and
// serves health and metrics over HTTP on the same port.
//
// ModelInfer, ModelConfig and ModelStreamInfer resolve through a
// gateway.Controller. ServerLive, ServerReady, ModelReady, ServerMetadata
// and ModelMetadata are forwarded to the upstream when one is configured
// and reachable and answered statically otherwise; they never touch the
// cache. Every other RPC answers Unimplemented.
//
// gRPC and HTTP/1 traffic share one listener through cmux.
package server
