// Package fingerprint derives fixed 128-bit keys from canonical request bytes.
//
// A Generator pairs a tensor.Canonicalizer with a Hasher. The default
// hasher is XXH3-128; SHA-256 truncated to 128 bits is available where a
// cryptographic hash is preferred. Fingerprints print as 32 lowercase hex
// characters and the first two characters name the storage shard.
package fingerprint
