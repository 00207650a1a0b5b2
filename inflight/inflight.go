package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/inferstore/fingerprint"
)

// Sentinel errors.
var (
	// ErrAborted is returned to waiters when the caller running a
	// non-detached call was cancelled. The request may be retried.
	ErrAborted = errors.New("inflight: shared call aborted")

	// ErrPanic wraps a panic raised by the call.
	ErrPanic = errors.New("inflight: call panicked")
)

// Config controls how shared calls run.
type Config struct {
	// Detach runs the call on a context that ignores the first caller's
	// cancellation.
	Detach bool

	// Timeout bounds a detached call. Zero means no bound beyond the
	// call's own deadlines.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
// Detach: true, Timeout: 60s
func DefaultConfig() Config {
	return Config{
		Detach:  true,
		Timeout: 60 * time.Second,
	}
}

// Group deduplicates concurrent calls per fingerprint.
//
// Contract:
//   - Concurrency: safe for concurrent use; the zero value is not usable.
//   - At most one call per fingerprint runs at a time within a Group.
//   - Errors are shared with every waiter and never retried by the Group.
//   - A waiter whose context ends returns ctx.Err() without affecting
//     the call or other waiters.
type Group[T any] struct {
	cfg Config
	sf  singleflight.Group

	mu      sync.Mutex
	waiters map[string]int
}

// New creates a Group.
func New[T any](cfg Config) *Group[T] {
	return &Group[T]{
		cfg:     cfg,
		waiters: make(map[string]int),
	}
}

// abortError marks a non-detached call that failed because the caller
// running it was cancelled.
type abortError struct{ err error }

func (e *abortError) Error() string { return "aborted: " + e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Do runs call once for concurrent callers sharing fp. shared reports
// whether the result came from a call started by another caller.
func (g *Group[T]) Do(ctx context.Context, fp fingerprint.Fingerprint, call func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	key := fp.String()
	leader := false
	// Counting and attaching happen under one lock, so a counted caller
	// is always attached to the running call.
	g.mu.Lock()
	g.waiters[key]++
	ch := g.sf.DoChan(key, func() (any, error) {
		leader = true
		return g.run(ctx, call)
	})
	g.mu.Unlock()
	defer g.leave(key)

	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case res := <-ch:
		if res.Val != nil {
			v, _ = res.Val.(T)
		}
		err = res.Err
		var abort *abortError
		if errors.As(err, &abort) {
			if leader {
				return v, false, abort.err
			}
			return v, true, fmt.Errorf("%w: %w", ErrAborted, abort.err)
		}
		return v, !leader, err
	}
}

func (g *Group[T]) run(ctx context.Context, call func(ctx context.Context) (T, error)) (val any, err error) {
	callCtx := ctx
	if g.cfg.Detach {
		callCtx = context.WithoutCancel(ctx)
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, g.cfg.Timeout)
			defer cancel()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	v, err := call(callCtx)
	if err != nil && !g.cfg.Detach && ctx.Err() != nil {
		return v, &abortError{err: ctx.Err()}
	}
	return v, err
}

func (g *Group[T]) leave(key string) {
	g.mu.Lock()
	if g.waiters[key]--; g.waiters[key] <= 0 {
		delete(g.waiters, key)
	}
	g.mu.Unlock()
}

// Waiters returns the number of callers currently inside Do for fp,
// including the one running the call.
func (g *Group[T]) Waiters(fp fingerprint.Fingerprint) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters[fp.String()]
}

// Callers returns the number of callers inside Do across all fingerprints.
func (g *Group[T]) Callers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.waiters {
		n += c
	}
	return n
}

// InFlight returns the number of fingerprints with callers inside Do.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}
