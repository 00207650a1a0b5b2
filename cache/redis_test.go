package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, cfg RedisConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_Contract(t *testing.T) {
	s, _ := newTestRedisStore(t, RedisConfig{})
	storeContract(t, s)
}

func TestRedisStore_ContractZstd(t *testing.T) {
	s, _ := newTestRedisStore(t, RedisConfig{Compression: CodecZstd})
	storeContract(t, s)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	s, mr := newTestRedisStore(t, RedisConfig{Prefix: "test:", TTL: time.Minute})
	e := testEntry("ttl")
	if err := s.Put(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	key := "test:" + e.Fingerprint.String()
	if !mr.Exists(key) {
		t.Fatalf("key %s not written", key)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(context.Background(), e.Fingerprint); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_NoExpiryByDefault(t *testing.T) {
	s, mr := newTestRedisStore(t, RedisConfig{})
	e := testEntry("forever")
	if err := s.Put(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(DefaultRedisPrefix + e.Fingerprint.String()); ttl != 0 {
		t.Errorf("TTL = %v, want none", ttl)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, mr := newTestRedisStore(t, RedisConfig{})
	fp := testFP("junk")
	if err := mr.Set(DefaultRedisPrefix+fp.String(), "junk"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), fp); !errors.Is(err, ErrCorruptEntry) {
		t.Errorf("Get() error = %v, want ErrCorruptEntry", err)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newTestRedisStore(t, RedisConfig{})
	mr.Close()

	ctx := context.Background()
	if _, err := s.Get(ctx, testFP("down")); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Get() error = %v, want ErrStorageUnavailable", err)
	}
	if err := s.Put(ctx, testEntry("down")); !errors.Is(err, ErrStorageWriteFailed) {
		t.Errorf("Put() error = %v, want ErrStorageWriteFailed", err)
	}
	if err := s.Ping(ctx); err == nil {
		t.Error("Ping() should fail")
	}
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if _, err := NewRedisStore(RedisConfig{URL: "://bad"}); err == nil {
		t.Error("NewRedisStore should reject a bad URL")
	}
}

func TestRedisStore_PutReplaces(t *testing.T) {
	s, _ := newTestRedisStore(t, RedisConfig{})
	ctx := context.Background()

	e := testEntry("rerecord")
	e.Payload = []byte("v1")
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Payload = []byte("v2")
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, e.Fingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "v2" {
		t.Errorf("Payload = %q, want v2", got.Payload)
	}
}
