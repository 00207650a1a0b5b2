package cache

import (
	"fmt"
	"time"
)

// Codec names a payload compression scheme.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
)

// ParseCodec converts a configuration value to a Codec. Empty means none.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd:
		return CodecZstd, nil
	default:
		return "", fmt.Errorf("cache: unknown codec %q", s)
	}
}

// Policy configures how entries are written.
type Policy struct {
	// Sync fsyncs each entry file and its directory before Put returns.
	// Only the file sync can fail a Put; the directory sync runs after
	// the entry is visible and its failure is ignored.
	Sync bool

	// Compression is applied to payloads on write. Reads accept any codec.
	Compression Codec

	// TempMaxAge is the age after which orphaned temp files are swept at
	// open. Zero disables sweeping.
	TempMaxAge time.Duration
}

// DefaultPolicy returns the durable write policy.
// Sync: true, Compression: none, TempMaxAge: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		Sync:        true,
		Compression: CodecNone,
		TempMaxAge:  time.Hour,
	}
}

// FastPolicy skips fsync. Entries remain atomic but may be lost on power
// failure; suitable for tests and throwaway recordings.
func FastPolicy() Policy {
	return Policy{
		Sync:        false,
		Compression: CodecNone,
		TempMaxAge:  time.Hour,
	}
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	if _, err := ParseCodec(string(p.Compression)); err != nil {
		return err
	}
	if p.TempMaxAge < 0 {
		return fmt.Errorf("cache: negative temp max age %s", p.TempMaxAge)
	}
	return nil
}
