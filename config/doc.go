// Package config loads the inferstore configuration.
//
// Values come, lowest precedence first, from built-in defaults, an optional
// config file (inferstore.yaml, .toml or .json in the working directory or
// /etc/inferstore, or the file named by --config), INFERSTORE_* environment
// variables and command-line flags. Environment names are the upper-cased
// key with dots replaced by underscores, so storage.redis.url is read from
// INFERSTORE_STORAGE_REDIS_URL.
//
// Secret-bearing values (the Redis URL, the JWT secret, API keys and
// upstream header values) may hold ${ENV} references or secretref:env:NAME
// and secretref:file:PATH references. Resolve replaces them before the
// values are used.
package config
