package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("INFERSTORE_TEST_HOST", "triton")
	t.Setenv("INFERSTORE_TEST_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${INFERSTORE_TEST_HOST}:8001", "triton:8001"},
		{"$INFERSTORE_TEST_HOST", "triton"},
		{"[${INFERSTORE_TEST_EMPTY}]", "[]"},
		{"$$${INFERSTORE_TEST_HOST}", "$triton"},
		{"cost $$5", "cost $5"},
		{"price: $5", "price: $5"},
		{"${not valid}", "${not valid}"},
		{"trailing $", "trailing $"},
		{"$INFERSTORE_TEST_UNSET_BARE/x", "/x"},
	}
	for _, tt := range tests {
		got, err := ExpandEnvStrict(tt.in)
		if err != nil {
			t.Fatalf("ExpandEnvStrict(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${INFERSTORE_TEST_MISSING_B} c=${INFERSTORE_TEST_MISSING_A} d=${INFERSTORE_TEST_MISSING_A}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.Contains(err.Error(), "INFERSTORE_TEST_MISSING_A, INFERSTORE_TEST_MISSING_B") {
		t.Errorf("missing names should be listed once, in order, got: %v", err)
	}
}
