package auth

import (
	"context"
	"testing"
	"time"
)

func TestIdentity_IsExpired(t *testing.T) {
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"no expiry", time.Time{}, false},
		{"future", time.Now().Add(time.Hour), false},
		{"past", time.Now().Add(-time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := &Identity{Principal: "svc", Method: AuthMethodJWT, ExpiresAt: tt.exp}
			if got := id.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_IsAnonymous(t *testing.T) {
	if !AnonymousIdentity().IsAnonymous() {
		t.Error("AnonymousIdentity should be anonymous")
	}
	if (&Identity{Method: AuthMethodAPIKey}).IsAnonymous() != true {
		t.Error("an identity without a principal is anonymous")
	}
	if (&Identity{Principal: "key-1", Method: AuthMethodAPIKey}).IsAnonymous() {
		t.Error("an API key identity is not anonymous")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || PrincipalFromContext(ctx) != "" {
		t.Error("empty context should carry no identity")
	}

	id := &Identity{Principal: "loadgen", Method: AuthMethodJWT}
	ctx = WithIdentity(ctx, id)
	if IdentityFromContext(ctx) != id {
		t.Error("IdentityFromContext should return the attached identity")
	}
	if PrincipalFromContext(ctx) != "loadgen" {
		t.Errorf("PrincipalFromContext() = %q", PrincipalFromContext(ctx))
	}
}
