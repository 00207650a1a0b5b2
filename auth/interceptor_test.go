package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUnaryServerInterceptor(t *testing.T) {
	a, err := New(Config{Enabled: true, APIKeys: []string{"secret-key"}})
	if err != nil {
		t.Fatal(err)
	}
	intercept := UnaryServerInterceptor(a)
	info := &grpc.UnaryServerInfo{FullMethod: "/inference.GRPCInferenceService/ModelInfer"}

	var seen *Identity
	handler := func(ctx context.Context, req any) (any, error) {
		seen = IdentityFromContext(ctx)
		return "ok", nil
	}

	tests := []struct {
		name     string
		md       metadata.MD
		wantCode codes.Code
	}{
		{"valid key", metadata.Pairs("x-api-key", "secret-key"), codes.OK},
		{"wrong key", metadata.Pairs("x-api-key", "guess"), codes.Unauthenticated},
		{"no credentials", nil, codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			_, err := intercept(ctx, nil, info, handler)
			if got := status.Code(err); got != tt.wantCode {
				t.Fatalf("code = %v, want %v (err %v)", got, tt.wantCode, err)
			}
			if tt.wantCode == codes.OK && (seen == nil || seen.Method != AuthMethodAPIKey) {
				t.Errorf("identity = %+v", seen)
			}
			if tt.wantCode != codes.OK && seen != nil {
				t.Error("handler must not run for rejected calls")
			}
		})
	}
}

func TestUnaryServerInterceptor_Disabled(t *testing.T) {
	intercept := UnaryServerInterceptor(nil)
	_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		if id := IdentityFromContext(ctx); id == nil || !id.IsAnonymous() {
			t.Errorf("identity = %+v, want anonymous", id)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestStreamServerInterceptor(t *testing.T) {
	a := NewAPIKeyAuthenticator(NewStaticAPIKeyStore("k"))
	intercept := StreamServerInterceptor(a)
	info := &grpc.StreamServerInfo{FullMethod: "/inference.GRPCInferenceService/ModelStreamInfer"}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "k"))
	err := intercept(nil, fakeStream{ctx: ctx}, info, func(srv any, ss grpc.ServerStream) error {
		if PrincipalFromContext(ss.Context()) == "" {
			t.Error("stream context should carry the identity")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("error = %v", err)
	}

	err = intercept(nil, fakeStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		t.Error("handler must not run")
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}
