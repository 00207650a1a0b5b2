package cache

import (
	"context"
	"errors"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// TieredStore pairs a primary store with a secondary one.
// Reads check the primary first, then the secondary with backfill.
// Writes go to both; only primary failures are returned.
type TieredStore struct {
	primary   Store
	secondary Store
	onError   func(op string, err error)
}

// TieredOption configures a TieredStore.
type TieredOption func(*TieredStore)

// WithSecondaryErrorHandler reports failures that the tiered store absorbs:
// secondary reads and writes and primary backfills.
func WithSecondaryErrorHandler(fn func(op string, err error)) TieredOption {
	return func(s *TieredStore) {
		s.onError = fn
	}
}

// NewTieredStore creates a two-tier store. A nil secondary makes it a
// pass-through to primary.
func NewTieredStore(primary, secondary Store, opts ...TieredOption) *TieredStore {
	s := &TieredStore{primary: primary, secondary: secondary}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TieredStore) report(op string, err error) {
	if s.onError != nil {
		s.onError(op, err)
	}
}

// Get reads the primary, falling back to the secondary on any primary
// failure. A secondary hit is copied into the primary.
func (s *TieredStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	e, perr := s.primary.Get(ctx, fp)
	if perr == nil || s.secondary == nil {
		return e, perr
	}
	if ctx.Err() != nil {
		return nil, perr
	}

	e, serr := s.secondary.Get(ctx, fp)
	if serr != nil {
		if !errors.Is(serr, ErrNotFound) {
			s.report("get", serr)
		}
		return nil, perr
	}
	if err := s.primary.Put(ctx, e); err != nil {
		s.report("backfill", err)
	}
	return e, nil
}

// Put writes to the primary, then the secondary.
func (s *TieredStore) Put(ctx context.Context, e *Entry) error {
	if err := s.primary.Put(ctx, e); err != nil {
		return err
	}
	if s.secondary != nil {
		if err := s.secondary.Put(ctx, e); err != nil {
			s.report("put", err)
		}
	}
	return nil
}

// Exists reports presence in either tier.
func (s *TieredStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	ok, perr := s.primary.Exists(ctx, fp)
	if ok || s.secondary == nil {
		return ok, perr
	}
	ok, serr := s.secondary.Exists(ctx, fp)
	if serr != nil {
		s.report("exists", serr)
		return false, perr
	}
	return ok, nil
}

// Ping checks the primary tier. Secondary health is reported separately.
func (s *TieredStore) Ping(ctx context.Context) error {
	if p, ok := s.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

var (
	_ Store  = (*TieredStore)(nil)
	_ Pinger = (*TieredStore)(nil)
)
