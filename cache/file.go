package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonwraymond/inferstore/fingerprint"
)

const (
	entryExt = ".inferstore"
	tempExt  = ".tmp"
)

// FileStore is a durable Store rooted at a directory.
//
// Layout: <root>/<2 hex>/<32 hex>.inferstore. Temp files live next to
// their destination so the final rename never crosses filesystems.
type FileStore struct {
	root   string
	policy Policy
	now    func() time.Time
}

// OpenFileStore opens or creates a store at root. It fails with
// ErrInvalidRoot if root cannot be created or written, and sweeps orphaned
// temp files older than policy.TempMaxAge.
func OpenFileStore(root string, policy Policy) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	s := &FileStore{root: root, policy: policy, now: time.Now}
	if err := s.probe(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if policy.TempMaxAge > 0 {
		if _, err := s.SweepTemp(policy.TempMaxAge); err != nil {
			return nil, fmt.Errorf("%w: sweep: %w", ErrInvalidRoot, err)
		}
	}
	return s, nil
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the entry file path for fp.
func (s *FileStore) Path(fp fingerprint.Fingerprint) string {
	return filepath.Join(s.root, fp.Prefix(), fp.String()+entryExt)
}

// Get reads and verifies the entry for fp.
func (s *FileStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(fp))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return decodeEntry(data, fp)
}

// Exists stats the entry file.
func (s *FileStore) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(fp))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}

// Put writes e atomically. A zero CreatedAt is set to the current time.
func (s *FileStore) Put(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := *e
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	data, err := encodeEntry(&rec, s.policy.Compression)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorageWriteFailed, err)
	}
	if err := s.writeAtomic(s.Path(rec.Fingerprint), data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+tempExt)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if s.policy.Sync {
		if err = f.Sync(); err != nil {
			return err
		}
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	if s.policy.Sync {
		// The entry is already visible; a failed directory sync only
		// weakens durability of the rename across power loss.
		_ = syncDir(dir)
	}
	return nil
}

var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Ping verifies the root is still writable.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.probe(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) probe() error {
	f, err := os.CreateTemp(s.root, ".probe-*"+tempExt)
	if err != nil {
		return err
	}
	name := f.Name()
	closeErr := f.Close()
	removeErr := os.Remove(name)
	return errors.Join(closeErr, removeErr)
}

// SweepTemp removes temp files older than maxAge from the root and its
// shard directories. It returns the number of files removed.
func (s *FileStore) SweepTemp(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && filepath.Dir(path) != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), tempExt) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

var (
	_ Store  = (*FileStore)(nil)
	_ Pinger = (*FileStore)(nil)
)
