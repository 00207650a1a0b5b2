// Package upstream forwards calls to the real inference server.
//
// Every error a Client returns is classified into one of three kinds:
// ErrUnreachable (connection failures and resilience rejections),
// ErrTimeout (deadline exceeded), or *ModelError (any status the server
// itself answered with, passed through verbatim). The gateway falls back to
// the cache only for the first two.
package upstream
