package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// DefaultRedisPrefix is prepended to every key.
const DefaultRedisPrefix = "inferstore:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the connection URL, e.g. "redis://:password@host:6379/0".
	URL string

	// Prefix is prepended to fingerprint keys (defaults to "inferstore:").
	Prefix string

	// TTL bounds entry lifetime in Redis. Zero keeps entries forever.
	TTL time.Duration

	// Compression is applied to payloads on write.
	Compression Codec
}

// RedisStore is a Store backed by Redis, used as a shared tier between
// gateway instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	codec  Codec
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", ErrStorageUnavailable, err)
	}
	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client. cfg.URL is ignored.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	codec := cfg.Compression
	if codec == "" {
		codec = CodecNone
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		codec:  codec,
		now:    time.Now,
	}
}

func (s *RedisStore) key(fp fingerprint.Fingerprint) string {
	return s.prefix + fp.String()
}

// Get fetches and verifies the entry for fp.
func (s *RedisStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: redis get: %w", ErrStorageUnavailable, err)
	}
	return decodeEntry(data, fp)
}

// Put stores e, replacing any entry for the same fingerprint.
func (s *RedisStore) Put(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	rec := *e
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	data, err := encodeEntry(&rec, s.codec)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorageWriteFailed, err)
	}
	if err := s.client.Set(ctx, s.key(rec.Fingerprint), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// Exists checks for the key without fetching the value.
func (s *RedisStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists: %w", ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)
