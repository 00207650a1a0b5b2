// Package secret resolves secret-bearing configuration values.
//
// A value is first expanded strictly against the environment (see
// ExpandEnvStrict) and then any secret references are resolved through
// providers. References use the prefix "secretref:":
//   - Full value:  secretref:env:REDIS_PASSWORD
//   - Inline use:  Bearer secretref:file:/run/secrets/upstream-token
//
// The env and file providers are registered in DefaultRegistry;
// NewDefaultResolver builds a Resolver over every registered provider.
package secret
