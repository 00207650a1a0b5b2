package health

import (
	"context"
	"fmt"
)

// DiskConfig configures the disk space checker. Thresholds are used
// fractions of the filesystem holding Path.
type DiskConfig struct {
	Path string

	// Warn marks the check degraded. Default: 0.90
	Warn float64

	// Critical marks the check unhealthy. Default: 0.98
	Critical float64
}

// DiskChecker reports free space on the filesystem holding the cache.
type DiskChecker struct {
	cfg DiskConfig
}

// NewDiskChecker creates a disk checker.
func NewDiskChecker(cfg DiskConfig) *DiskChecker {
	if cfg.Warn <= 0 || cfg.Warn >= 1 {
		cfg.Warn = 0.90
	}
	if cfg.Critical <= 0 || cfg.Critical > 1 {
		cfg.Critical = 0.98
	}
	if cfg.Critical < cfg.Warn {
		cfg.Critical = cfg.Warn
	}
	return &DiskChecker{cfg: cfg}
}

func (d *DiskChecker) Name() string { return "disk" }

func (d *DiskChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}
	total, avail, err := diskUsage(d.cfg.Path)
	if err != nil {
		return Unhealthy("statfs failed", err)
	}
	return d.classify(total, avail)
}

func (d *DiskChecker) classify(total, avail uint64) Result {
	if total == 0 {
		return Healthy("filesystem size unknown")
	}
	used := 1 - float64(avail)/float64(total)
	details := map[string]any{
		"path":          d.cfg.Path,
		"total_bytes":   total,
		"avail_bytes":   avail,
		"used_fraction": used,
	}
	msg := fmt.Sprintf("disk %.1f%% used", used*100)

	switch {
	case used >= d.cfg.Critical:
		return Unhealthy(msg, ErrCheckFailed).WithDetails(details)
	case used >= d.cfg.Warn:
		return Degraded(msg, nil).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}

var _ Checker = (*DiskChecker)(nil)
