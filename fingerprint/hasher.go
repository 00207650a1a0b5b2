package fingerprint

import (
	"crypto/sha256"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Hasher names accepted by NewHasher.
const (
	HashXXH3   = "xxh3"
	HashSHA256 = "sha256"
)

// Hasher reduces canonical bytes to a Fingerprint.
//
// Contract:
//   - Determinism: output depends only on the input bytes.
//   - Concurrency: implementations must be safe for concurrent use.
type Hasher interface {
	Name() string
	Sum(b []byte) Fingerprint
}

// NewHasher returns the hasher registered under name. An empty name
// selects XXH3.
func NewHasher(name string) (Hasher, error) {
	switch name {
	case "", HashXXH3:
		return XXH3{}, nil
	case HashSHA256:
		return SHA256{}, nil
	default:
		return nil, fmt.Errorf("fingerprint: unknown hash %q", name)
	}
}

// XXH3 hashes with XXH3-128.
type XXH3 struct{}

func (XXH3) Name() string { return HashXXH3 }

func (XXH3) Sum(b []byte) Fingerprint {
	return Fingerprint(xxh3.Hash128(b).Bytes())
}

// SHA256 hashes with SHA-256 and keeps the first 16 bytes.
type SHA256 struct{}

func (SHA256) Name() string { return HashSHA256 }

func (SHA256) Sum(b []byte) Fingerprint {
	sum := sha256.Sum256(b)
	var f Fingerprint
	copy(f[:], sum[:Size])
	return f
}

var (
	_ Hasher = XXH3{}
	_ Hasher = SHA256{}
)
