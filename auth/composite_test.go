package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestCompositeAuthenticator(t *testing.T) {
	c := NewCompositeAuthenticator(
		NewAPIKeyAuthenticator(NewStaticAPIKeyStore("k1")),
		NewJWTAuthenticator(JWTConfig{Secret: testSecret}),
	)
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "svc"})

	tests := []struct {
		name       string
		md         map[string][]string
		wantMethod AuthMethod
		wantErr    error
	}{
		{"api key", map[string][]string{"x-api-key": {"k1"}}, AuthMethodAPIKey, nil},
		{"jwt", map[string][]string{"authorization": {"Bearer " + token}}, AuthMethodJWT, nil},
		{"bad key, good jwt", map[string][]string{"x-api-key": {"bad"}, "authorization": {"Bearer " + token}}, AuthMethodJWT, nil},
		{"bad key only", map[string][]string{"x-api-key": {"bad"}}, "", ErrInvalidCredentials},
		{"nothing", nil, "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Authenticate(context.Background(), &AuthRequest{Metadata: tt.md})
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr != nil {
				if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
					t.Errorf("result = %+v, want %v", result, tt.wantErr)
				}
				return
			}
			if !result.Authenticated || result.Identity.Method != tt.wantMethod {
				t.Errorf("result = %+v", result)
			}
		})
	}
}
