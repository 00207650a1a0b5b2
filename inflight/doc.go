// Package inflight collapses concurrent identical calls into one.
//
// A Group keys calls by fingerprint. The first caller for a fingerprint
// runs the call; callers arriving while it is running wait for and share
// its result, including its error. Once the call completes the key is
// released and the next caller starts a fresh call.
//
// By default the shared call runs detached from the first caller's
// cancellation, bounded by Config.Timeout, so a disconnecting client does
// not fail everyone else waiting on the same result.
package inflight
