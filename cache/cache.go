package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// Sentinel errors for store operations.
var (
	ErrNotFound           = errors.New("cache: entry not found")
	ErrStorageUnavailable = errors.New("cache: storage unavailable")
	ErrStorageWriteFailed = errors.New("cache: storage write failed")
	ErrCorruptEntry       = errors.New("cache: corrupt entry")
	ErrInvalidEntry       = errors.New("cache: invalid entry")
	ErrInvalidRoot        = errors.New("cache: unusable storage root")
)

// Kind separates the record types kept in one store.
type Kind string

const (
	KindInfer       Kind = "infer"
	KindModelConfig Kind = "model-config"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInfer || k == KindModelConfig
}

// Entry is one recorded response.
type Entry struct {
	Fingerprint fingerprint.Fingerprint
	Kind        Kind
	Model       string
	Version     string

	// Payload is the serialized response message.
	Payload []byte

	CreatedAt time.Time
}

// Validate checks that the entry can be stored.
func (e *Entry) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if e.Fingerprint.IsZero() {
		return fmt.Errorf("%w: zero fingerprint", ErrInvalidEntry)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	return nil
}

// Store maps fingerprints to recorded responses.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods should honor cancellation where the backend allows.
//   - Errors: Get returns ErrNotFound on a miss, ErrCorruptEntry for
//     undecodable data and ErrStorageUnavailable for backend failures.
//     Put failures wrap ErrStorageWriteFailed.
//   - Atomicity: a Get never observes a partially written entry.
//   - Immutability: entries are never updated in place; concurrent Puts of
//     the same fingerprint leave one complete entry.
type Store interface {
	// Get returns the entry for fp.
	Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error)

	// Put durably records e, replacing any entry for the same fingerprint.
	Put(ctx context.Context, e *Entry) error

	// Exists reports whether an entry for fp is present without decoding it.
	Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsMiss reports whether err should be treated as a cache miss by callers.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptEntry)
}
