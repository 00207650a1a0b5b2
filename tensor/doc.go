// Package tensor models inference requests and turns them into canonical bytes.
//
// A Request is built from a wire ModelInferRequest with FromProto, checked
// with Validate, and serialized by a Canonicalizer. Canonical bytes are the
// only input to fingerprinting, so two requests that mean the same thing
// must canonicalize identically and two that differ must not.
//
// Every variable-length field is length-prefixed and inputs and requested
// outputs are sorted by name, so client-side ordering never changes the
// result.
package tensor
