// Package auth authenticates callers of the inference surface.
//
// Credentials arrive as gRPC metadata: an API key in "x-api-key" or an
// HS256 bearer token in "authorization". Interceptors built by
// UnaryServerInterceptor and StreamServerInterceptor reject calls without
// valid credentials with codes.Unauthenticated and attach the resulting
// Identity to the call context.
package auth
