package server

import (
	"time"

	"google.golang.org/grpc"

	"github.com/jonwraymond/inferstore/auth"
	"github.com/jonwraymond/inferstore/observe"
)

// Info is what ServerMetadata reports when answered statically.
type Info struct {
	Name    string
	Version string
}

// Option configures a Service or a Server.
type Option func(*options)

type options struct {
	logger          observe.Logger
	middleware      *observe.Middleware
	authenticator   auth.Authenticator
	info            Info
	grpcOptions     []grpc.ServerOption
	maxMessageBytes int
	shutdownTimeout time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		info:            Info{Name: "inferstore", Version: "dev"},
		maxMessageBytes: 128 << 20,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.middleware == nil {
		o.middleware = observe.NewMiddleware(nil, nil, o.logger)
	}
	if o.logger == nil {
		o.logger = o.middleware.Logger()
	}
	return o
}

// WithLogger sets the logger for lifecycle and admin fallback messages.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMiddleware sets the per-call telemetry middleware.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *options) { o.middleware = m }
}

// WithAuthenticator requires credentials on every RPC. Nil disables
// authentication.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

// WithInfo sets the static ServerMetadata answer.
func WithInfo(info Info) Option {
	return func(o *options) { o.info = info }
}

// WithMaxMessageBytes bounds received and sent messages. Default: 128 MiB
func WithMaxMessageBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageBytes = n
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown before open calls are cut.
// Default: 15s
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithGRPCOptions appends raw gRPC server options.
func WithGRPCOptions(opts ...grpc.ServerOption) Option {
	return func(o *options) { o.grpcOptions = append(o.grpcOptions, opts...) }
}
