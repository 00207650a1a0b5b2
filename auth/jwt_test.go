package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func bearer(token string) *AuthRequest {
	return &AuthRequest{Metadata: map[string][]string{"authorization": {"Bearer " + token}}}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{Secret: testSecret})

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"bearer", "Bearer abc", true},
		{"lower case scheme", "bearer abc", true},
		{"basic", "Basic abc", false},
		{"empty token", "Bearer ", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AuthRequest{Metadata: map[string][]string{"authorization": {tt.header}}}
			if got := auth.Supports(context.Background(), req); got != tt.want {
				t.Errorf("Supports(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Issuer: "ci", Audience: "inferstore"})
	now := time.Now()
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "pipeline-7",
			"iss": "ci",
			"aud": "inferstore",
			"exp": now.Add(time.Hour).Unix(),
			"iat": now.Unix(),
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"valid", func() string { return signToken(t, jwt.SigningMethodHS256, testSecret, valid()) }, nil},
		{"expired", func() string {
			c := valid()
			c["exp"] = now.Add(-time.Hour).Unix()
			return signToken(t, jwt.SigningMethodHS256, testSecret, c)
		}, ErrTokenExpired},
		{"wrong issuer", func() string {
			c := valid()
			c["iss"] = "someone"
			return signToken(t, jwt.SigningMethodHS256, testSecret, c)
		}, ErrInvalidCredentials},
		{"wrong audience", func() string {
			c := valid()
			c["aud"] = []string{"other"}
			return signToken(t, jwt.SigningMethodHS256, testSecret, c)
		}, ErrInvalidCredentials},
		{"wrong secret", func() string { return signToken(t, jwt.SigningMethodHS256, []byte("nope"), valid()) }, ErrInvalidCredentials},
		{"other algorithm", func() string { return signToken(t, jwt.SigningMethodHS512, testSecret, valid()) }, ErrInvalidCredentials},
		{"garbage", func() string { return "not.a.token" }, ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := auth.Authenticate(context.Background(), bearer(tt.token()))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantErr == nil {
				if !result.Authenticated {
					t.Fatalf("Authenticated = false, error = %v", result.Error)
				}
				id := result.Identity
				if id.Principal != "pipeline-7" || id.Method != AuthMethodJWT || id.ExpiresAt.IsZero() || id.IssuedAt.IsZero() {
					t.Errorf("identity = %+v", id)
				}
				return
			}
			if result.Authenticated || !errors.Is(result.Error, tt.wantErr) {
				t.Errorf("result error = %v, want %v", result.Error, tt.wantErr)
			}
		})
	}
}
