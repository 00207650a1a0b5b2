package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// formatVersion is bumped whenever the envelope layout changes.
const formatVersion = 1

// envelope is the serialized form of an Entry, shared by every backend.
type envelope struct {
	Format      int       `json:"format"`
	Fingerprint string    `json:"fingerprint"`
	Kind        Kind      `json:"kind"`
	Model       string    `json:"model"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Codec       Codec     `json:"codec"`
	Checksum    string    `json:"checksum"`
	Payload     []byte    `json:"payload"`
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) })
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) { return zstd.NewReader(nil) })
)

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// encodeEntry serializes e. The checksum covers the uncompressed payload.
func encodeEntry(e *Entry, codec Codec) ([]byte, error) {
	env := envelope{
		Format:      formatVersion,
		Fingerprint: e.Fingerprint.String(),
		Kind:        e.Kind,
		Model:       e.Model,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt.UTC(),
		Codec:       CodecNone,
		Checksum:    checksum(e.Payload),
		Payload:     e.Payload,
	}
	if codec == CodecZstd {
		enc, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		env.Codec = CodecZstd
		env.Payload = enc.EncodeAll(e.Payload, nil)
	}
	return json.Marshal(&env)
}

// decodeEntry parses data and checks it belongs to want. Any mismatch is
// reported as ErrCorruptEntry.
func decodeEntry(data []byte, want fingerprint.Fingerprint) (*Entry, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if env.Format != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorruptEntry, env.Format)
	}
	fp, err := fingerprint.Parse(env.Fingerprint)
	if err != nil || fp != want {
		return nil, fmt.Errorf("%w: fingerprint mismatch", ErrCorruptEntry)
	}
	if !env.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorruptEntry, env.Kind)
	}

	payload := env.Payload
	switch env.Codec {
	case CodecNone:
	case CodecZstd:
		d, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		payload, err = d.DecodeAll(env.Payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorruptEntry, env.Codec)
	}
	if checksum(payload) != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptEntry)
	}

	return &Entry{
		Fingerprint: fp,
		Kind:        env.Kind,
		Model:       env.Model,
		Version:     env.Version,
		Payload:     payload,
		CreatedAt:   env.CreatedAt,
	}, nil
}
