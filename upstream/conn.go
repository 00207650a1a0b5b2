package upstream

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/inferstore/observe"
)

// meteredConn records a metric for every unary call it carries.
type meteredConn struct {
	cc      grpc.ClientConnInterface
	metrics observe.Metrics
}

func (c *meteredConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	start := time.Now()
	err := c.cc.Invoke(ctx, method, args, reply, opts...)
	c.metrics.RecordUpstreamCall(ctx, method, status.Code(err).String(), time.Since(start))
	return err
}

func (c *meteredConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.cc.NewStream(ctx, desc, method, opts...)
}

var _ grpc.ClientConnInterface = (*meteredConn)(nil)
