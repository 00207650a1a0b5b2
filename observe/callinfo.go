package observe

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Call outcomes reported in logs, spans and the cache lookup counter.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"

	// OutcomeForward marks a collect mode call that skipped the lookup.
	OutcomeForward = "forward"
)

// CallInfo accumulates per-call details that are only known once the
// gateway has resolved the request. All methods are safe on a nil receiver.
type CallInfo struct {
	RequestID string

	mu          sync.Mutex
	fingerprint string
	outcome     string
	shared      bool
}

type callInfoKey struct{}

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return uuid.NewString()
}

// WithCallInfo returns a context carrying info.
func WithCallInfo(ctx context.Context, info *CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the CallInfo in ctx, or nil.
func CallInfoFrom(ctx context.Context) *CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(*CallInfo)
	return info
}

func (c *CallInfo) SetFingerprint(fp string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fingerprint = fp
	c.mu.Unlock()
}

func (c *CallInfo) SetOutcome(outcome string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outcome = outcome
	c.mu.Unlock()
}

func (c *CallInfo) SetShared(shared bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.shared = shared
	c.mu.Unlock()
}

// Snapshot returns the fingerprint, outcome and shared flag recorded so far.
func (c *CallInfo) Snapshot() (fingerprint, outcome string, shared bool) {
	if c == nil {
		return "", "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fingerprint, c.outcome, c.shared
}
