package auth_test

import (
	"context"
	"fmt"

	"google.golang.org/grpc/metadata"

	"github.com/jonwraymond/inferstore/auth"
)

func ExampleAuthenticate() {
	a, _ := auth.New(auth.Config{Enabled: true, APIKeys: []string{"ci-key"}})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "ci-key"))
	ctx, err := auth.Authenticate(ctx, a, "/inference.GRPCInferenceService/ModelInfer")
	fmt.Println(err, auth.IdentityFromContext(ctx).Method)
	// Output: <nil> api_key
}
