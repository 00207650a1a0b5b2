package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StorageChecker verifies that the cache root exists and accepts writes.
type StorageChecker struct {
	root string
}

// NewStorageChecker creates a checker for the cache root.
func NewStorageChecker(root string) *StorageChecker {
	return &StorageChecker{root: root}
}

func (s *StorageChecker) Name() string { return "storage" }

func (s *StorageChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}
	fi, err := os.Stat(s.root)
	if err != nil {
		return Unhealthy("storage root unavailable", err)
	}
	if !fi.IsDir() {
		return Unhealthy("storage root is not a directory", fmt.Errorf("%w: %s", ErrCheckFailed, s.root))
	}

	f, err := os.CreateTemp(s.root, ".health-*.tmp")
	if err != nil {
		return Unhealthy("storage root not writable", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return Healthy("storage writable").WithDetails(map[string]any{"root": filepath.Clean(s.root)})
}

var _ Checker = (*StorageChecker)(nil)
