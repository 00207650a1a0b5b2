package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// MemoryStore is an in-memory Store. Entries do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint]*Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[fingerprint.Fingerprint]*Entry),
		now:     time.Now,
	}
}

// Get returns a copy of the entry for fp.
func (s *MemoryStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

// Put stores a copy of e, replacing any entry for the same fingerprint.
func (s *MemoryStore) Put(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := cloneEntry(e)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.entries[rec.Fingerprint] = rec
	s.mu.Unlock()
	return nil
}

// Exists reports whether fp is present.
func (s *MemoryStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.entries[fp]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	c.Payload = bytes.Clone(e.Payload)
	return &c
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
