package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordedError struct {
	op  string
	err error
}

type errorLog struct {
	mu   sync.Mutex
	errs []recordedError
}

func (l *errorLog) handler(op string, err error) {
	l.mu.Lock()
	l.errs = append(l.errs, recordedError{op, err})
	l.mu.Unlock()
}

func (l *errorLog) ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.errs))
	for i, e := range l.errs {
		out[i] = e.op
	}
	return out
}

func TestTieredStore_Contract(t *testing.T) {
	storeContract(t, NewTieredStore(NewMemoryStore(), NewMemoryStore()))
	storeContract(t, NewTieredStore(NewMemoryStore(), nil))
}

func TestTieredStore_BackfillsPrimary(t *testing.T) {
	ctx := context.Background()
	primary, secondary := NewMemoryStore(), NewMemoryStore()
	s := NewTieredStore(primary, secondary)

	e := testEntry("shared")
	if err := secondary.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, e.Fingerprint); !ok {
		t.Error("Exists should see the secondary tier")
	}
	if _, err := s.Get(ctx, e.Fingerprint); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok, _ := primary.Exists(ctx, e.Fingerprint); !ok {
		t.Error("secondary hit should backfill primary")
	}
}

func TestTieredStore_WritesBoth(t *testing.T) {
	ctx := context.Background()
	primary, secondary := NewMemoryStore(), NewMemoryStore()
	s := NewTieredStore(primary, secondary)

	if err := s.Put(ctx, testEntry("both")); err != nil {
		t.Fatal(err)
	}
	if primary.Len() != 1 || secondary.Len() != 1 {
		t.Errorf("primary=%d secondary=%d, want 1 each", primary.Len(), secondary.Len())
	}
}

func TestTieredStore_SecondaryFailuresAbsorbed(t *testing.T) {
	ctx := context.Background()
	var log errorLog
	broken := &mockStore{err: ErrStorageUnavailable}
	s := NewTieredStore(NewMemoryStore(), broken, WithSecondaryErrorHandler(log.handler))

	if err := s.Put(ctx, testEntry("x")); err != nil {
		t.Errorf("Put() error = %v, secondary failures must not surface", err)
	}
	if _, err := s.Get(ctx, testFP("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	got := log.ops()
	if len(got) != 2 || got[0] != "put" || got[1] != "get" {
		t.Errorf("reported ops = %v, want [put get]", got)
	}
}

func TestTieredStore_PrimaryFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	s := NewTieredStore(&mockStore{err: ErrStorageWriteFailed}, NewMemoryStore())
	if err := s.Put(ctx, testEntry("x")); !errors.Is(err, ErrStorageWriteFailed) {
		t.Errorf("Put() error = %v, want ErrStorageWriteFailed", err)
	}
}

func TestTieredStore_PrimaryDownServesSecondary(t *testing.T) {
	ctx := context.Background()
	var log errorLog
	secondary := NewMemoryStore()
	e := testEntry("fallback")
	if err := secondary.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	s := NewTieredStore(&mockStore{err: ErrStorageUnavailable}, secondary, WithSecondaryErrorHandler(log.handler))

	got, err := s.Get(ctx, e.Fingerprint)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Payload) != string(e.Payload) {
		t.Errorf("Payload = %q", got.Payload)
	}
	if ops := log.ops(); len(ops) != 1 || ops[0] != "backfill" {
		t.Errorf("reported ops = %v, want [backfill]", ops)
	}
}

func TestTieredStore_RewriteReachesBothTiers(t *testing.T) {
	ctx := context.Background()
	file := openTestStore(t, FastPolicy())
	shared, _ := newTestRedisStore(t, RedisConfig{})
	s := NewTieredStore(file, shared)

	e := testEntry("rerecord")
	e.Payload = []byte("v1-old-model")
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Payload = []byte("v2-recollected")
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}

	for name, st := range map[string]Store{"tiered": s, "file": file, "redis": shared} {
		got, err := st.Get(ctx, e.Fingerprint)
		if err != nil {
			t.Fatalf("%s Get() error = %v", name, err)
		}
		if string(got.Payload) != "v2-recollected" {
			t.Errorf("%s Payload = %q, want v2-recollected", name, got.Payload)
		}
	}
}
