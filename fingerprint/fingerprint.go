package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the fingerprint length in bytes.
const Size = 16

// ErrInvalidFingerprint is returned by Parse for malformed text.
var ErrInvalidFingerprint = errors.New("fingerprint: invalid fingerprint")

// Fingerprint identifies a canonical request.
type Fingerprint [Size]byte

// String returns the 32-character lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Prefix returns the first two hex characters, used as a shard directory.
func (f Fingerprint) Prefix() string {
	return hex.EncodeToString(f[:1])
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// Parse decodes the hex form produced by String. Uppercase is rejected so
// that every fingerprint has exactly one text form.
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != 2*Size {
		return f, fmt.Errorf("%w: length %d", ErrInvalidFingerprint, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return f, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
		}
	}
	if _, err := hex.Decode(f[:], []byte(s)); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	return f, nil
}
