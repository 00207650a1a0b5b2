package gateway_test

import (
	"context"
	"testing"

	"github.com/jonwraymond/inferstore/cache"
	"github.com/jonwraymond/inferstore/gateway"
	"github.com/jonwraymond/inferstore/upstream"
	"github.com/jonwraymond/inferstore/upstream/upstreamtest"
)

func BenchmarkController_ServeHit(b *testing.B) {
	srv := upstreamtest.Start(b)
	up, err := upstream.NewGRPCClient(upstream.Config{Target: upstreamtest.Target}, upstream.WithDialOptions(srv.DialOptions()...))
	if err != nil {
		b.Fatal(err)
	}
	defer up.Close()

	c, err := gateway.New(gateway.DefaultConfig(), cache.NewMemoryStore(), nil, up)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if _, err := c.ModelInfer(ctx, resnetRequest("")); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ModelInfer(ctx, resnetRequest("")); err != nil {
			b.Fatal(err)
		}
	}
}
