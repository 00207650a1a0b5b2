package gateway

import (
	"fmt"
	"strings"
)

// Mode selects how the controller treats the cache.
type Mode string

const (
	// ModeServe answers from the cache first and forwards only misses.
	ModeServe Mode = "serve"

	// ModeCollect forwards every call and records each success.
	ModeCollect Mode = "collect"
)

// ParseMode parses a mode name. Empty selects ModeServe.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeServe:
		return ModeServe, nil
	case ModeCollect:
		return ModeCollect, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Failover selects what collect mode does when the upstream is unavailable.
type Failover string

const (
	// FailoverNone fails the call.
	FailoverNone Failover = "none"

	// FailoverCache answers from the cache when an entry exists.
	FailoverCache Failover = "cache"
)

// ParseFailover parses a failover name. Empty selects FailoverNone.
func ParseFailover(s string) (Failover, error) {
	switch Failover(strings.ToLower(s)) {
	case "", FailoverNone:
		return FailoverNone, nil
	case FailoverCache:
		return FailoverCache, nil
	}
	return "", fmt.Errorf("%w: unknown failover %q", ErrInvalidConfig, s)
}
