package auth

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"disabled", Config{APIKeys: []string{"k"}}, "", nil},
		{"keys", Config{Enabled: true, APIKeys: []string{"k"}}, "api_key", nil},
		{"jwt", Config{Enabled: true, JWT: JWTConfig{Secret: []byte("s")}}, "jwt", nil},
		{"both", Config{Enabled: true, APIKeys: []string{"k"}, JWT: JWTConfig{Secret: []byte("s")}}, "composite", nil},
		{"nothing accepted", Config{Enabled: true, APIKeys: []string{""}}, "", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantName == "" {
				if a != nil {
					t.Errorf("New() = %v, want nil", a)
				}
				return
			}
			if a == nil || a.Name() != tt.wantName {
				t.Errorf("New() = %v, want %s", a, tt.wantName)
			}
		})
	}
}
