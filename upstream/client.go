package upstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	triton "github.com/Meesho/BharatMLStack/helix-client/pkg/clients/predator/client/grpc"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/jonwraymond/inferstore/observe"
	"github.com/jonwraymond/inferstore/resilience"
)

// Client is the subset of the inference service the gateway forwards to.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: every call honours cancellation and deadlines.
//   - Errors: every error is already classified (see Classify).
type Client interface {
	ModelInfer(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error)
	ModelConfig(ctx context.Context, req *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error)
	ServerLive(ctx context.Context, req *triton.ServerLiveRequest) (*triton.ServerLiveResponse, error)
	ServerReady(ctx context.Context, req *triton.ServerReadyRequest) (*triton.ServerReadyResponse, error)
	ModelReady(ctx context.Context, req *triton.ModelReadyRequest) (*triton.ModelReadyResponse, error)
	ServerMetadata(ctx context.Context, req *triton.ServerMetadataRequest) (*triton.ServerMetadataResponse, error)
	ModelMetadata(ctx context.Context, req *triton.ModelMetadataRequest) (*triton.ModelMetadataResponse, error)
	Close() error
}

// Config configures a GRPCClient.
type Config struct {
	// Target is the host:port of the inference server. Required.
	Target string

	// Timeout is the per-attempt deadline. Default: 30s
	Timeout time.Duration

	// TLS enables transport security with the system roots.
	TLS bool

	// Headers are attached as outgoing metadata on every call.
	Headers map[string]string

	// MaxMessageBytes bounds request and response sizes. Default: 128 MiB
	MaxMessageBytes int

	// MaxAttempts retries unreachable errors. Default: 1 (no retries)
	MaxAttempts int

	// CircuitMaxFailures opens the breaker after this many consecutive
	// unreachable or timed-out calls. Default: 5
	CircuitMaxFailures int

	// CircuitResetTimeout is how long the breaker stays open. Default: 30s
	CircuitResetTimeout time.Duration

	// MaxConcurrent bounds in-flight upstream calls. Zero disables.
	MaxConcurrent int

	// RateLimit bounds calls per second. Zero disables.
	RateLimit float64
}

const defaultMaxMessageBytes = 128 << 20

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.CircuitMaxFailures <= 0 {
		c.CircuitMaxFailures = 5
	}
	if c.CircuitResetTimeout <= 0 {
		c.CircuitResetTimeout = 30 * time.Second
	}
}

// Option configures a GRPCClient.
type Option func(*GRPCClient)

// WithDialOptions appends raw dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithMetrics records every upstream call.
func WithMetrics(m observe.Metrics) Option {
	return func(c *GRPCClient) {
		c.metrics = m
	}
}

// WithLogger logs breaker transitions.
func WithLogger(l observe.Logger) Option {
	return func(c *GRPCClient) {
		c.logger = l
	}
}

// WithExecutor replaces the executor built from Config.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *GRPCClient) {
		c.exec = e
	}
}

// GRPCClient forwards calls over a single gRPC connection.
type GRPCClient struct {
	cfg      Config
	conn     *grpc.ClientConn
	client   triton.GRPCInferenceServiceClient
	exec     *resilience.Executor
	metrics  observe.Metrics
	logger   observe.Logger
	dialOpts []grpc.DialOption
	md       metadata.MD
}

// NewGRPCClient creates a client for cfg.Target. The connection is
// established lazily on the first call.
func NewGRPCClient(cfg Config, opts ...Option) (*GRPCClient, error) {
	if cfg.Target == "" {
		return nil, ErrNotConfigured
	}
	cfg.applyDefaults()

	c := &GRPCClient{
		cfg:     cfg,
		metrics: observe.NopMetrics(),
		logger:  observe.NopLogger(),
		md:      metadata.New(cfg.Headers),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = c.newExecutor()
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageBytes),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageBytes),
		),
	}
	dialOpts = append(dialOpts, c.dialOpts...)

	conn, err := grpc.NewClient(cfg.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("upstream: dial %s: %w", cfg.Target, err)
	}
	c.conn = conn
	c.client = triton.NewGRPCInferenceServiceClient(&meteredConn{cc: conn, metrics: c.metrics})
	return c, nil
}

func (c *GRPCClient) newExecutor() *resilience.Executor {
	opts := []resilience.ExecutorOption{
		resilience.WithTimeout(c.cfg.Timeout),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  c.cfg.CircuitMaxFailures,
			ResetTimeout: c.cfg.CircuitResetTimeout,
			IsFailure:    IsUnavailable,
			OnStateChange: func(from, to resilience.State) {
				c.logger.Warn(context.Background(), "upstream circuit state changed",
					observe.F("target", c.cfg.Target),
					observe.F("from", from.String()),
					observe.F("to", to.String()),
				)
			},
		})),
	}
	if c.cfg.MaxAttempts > 1 {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: c.cfg.MaxAttempts,
			Jitter:      true,
			RetryIf: func(err error) bool {
				return errors.Is(err, ErrUnreachable)
			},
		})))
	}
	if c.cfg.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: c.cfg.MaxConcurrent,
			MaxWait:       c.cfg.Timeout,
		})))
	}
	if c.cfg.RateLimit > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        c.cfg.RateLimit,
			Burst:       max(1, int(c.cfg.RateLimit)),
			WaitOnLimit: true,
			MaxWait:     c.cfg.Timeout,
		})))
	}
	return resilience.NewExecutor(opts...)
}

// Target returns the configured upstream address.
func (c *GRPCClient) Target() string {
	return c.cfg.Target
}

// CircuitState reports the breaker state.
func (c *GRPCClient) CircuitState() resilience.State {
	if cb := c.exec.CircuitBreaker(); cb != nil {
		return cb.State()
	}
	return resilience.StateClosed
}

// Close releases the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) ModelInfer(ctx context.Context, req *triton.ModelInferRequest) (*triton.ModelInferResponse, error) {
	return invoke(ctx, c, req, c.client.ModelInfer)
}

func (c *GRPCClient) ModelConfig(ctx context.Context, req *triton.ModelConfigRequest) (*triton.ModelConfigResponse, error) {
	return invoke(ctx, c, req, c.client.ModelConfig)
}

func (c *GRPCClient) ServerLive(ctx context.Context, req *triton.ServerLiveRequest) (*triton.ServerLiveResponse, error) {
	return invoke(ctx, c, req, c.client.ServerLive)
}

func (c *GRPCClient) ServerReady(ctx context.Context, req *triton.ServerReadyRequest) (*triton.ServerReadyResponse, error) {
	return invoke(ctx, c, req, c.client.ServerReady)
}

func (c *GRPCClient) ModelReady(ctx context.Context, req *triton.ModelReadyRequest) (*triton.ModelReadyResponse, error) {
	return invoke(ctx, c, req, c.client.ModelReady)
}

func (c *GRPCClient) ServerMetadata(ctx context.Context, req *triton.ServerMetadataRequest) (*triton.ServerMetadataResponse, error) {
	return invoke(ctx, c, req, c.client.ServerMetadata)
}

func (c *GRPCClient) ModelMetadata(ctx context.Context, req *triton.ModelMetadataRequest) (*triton.ModelMetadataResponse, error) {
	return invoke(ctx, c, req, c.client.ModelMetadata)
}

// invoke runs one stub call through the executor with the static headers
// attached, classifying errors both per attempt and after the guards.
func invoke[Req, Resp any](
	ctx context.Context,
	c *GRPCClient,
	req Req,
	fn func(context.Context, Req, ...grpc.CallOption) (Resp, error),
) (Resp, error) {
	if c.md.Len() > 0 {
		ctx = metadata.NewOutgoingContext(ctx, metadata.Join(outgoing(ctx), c.md))
	}
	resp, err := resilience.Do(ctx, c.exec, func(ctx context.Context) (Resp, error) {
		resp, err := fn(ctx, req)
		return resp, Classify(err)
	})
	return resp, Classify(err)
}

func outgoing(ctx context.Context) metadata.MD {
	md, _ := metadata.FromOutgoingContext(ctx)
	return md
}

var _ Client = (*GRPCClient)(nil)
