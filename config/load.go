package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jonwraymond/inferstore/secret"
)

const (
	// ServiceName names the process in telemetry and config search.
	ServiceName = "inferstore"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "INFERSTORE"
)

// SearchPaths are the directories searched for inferstore.{yaml,toml,json}
// when no --config flag is given.
var SearchPaths = []string{".", "/etc/inferstore"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "serve")
	v.SetDefault("failover", "none")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.max_message_bytes", 128<<20)
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("upstream.target", "")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.tls", false)
	v.SetDefault("upstream.retry.max_attempts", 1)
	v.SetDefault("upstream.circuit.max_failures", 5)
	v.SetDefault("upstream.circuit.reset_timeout", "30s")
	v.SetDefault("upstream.max_concurrent", 0)
	v.SetDefault("upstream.rate_limit", 0.0)

	v.SetDefault("storage.dir", "collection")
	v.SetDefault("storage.compression", "none")
	v.SetDefault("storage.sync", true)
	v.SetDefault("storage.redis.url", "")
	v.SetDefault("storage.redis.prefix", "inferstore:")
	v.SetDefault("storage.redis.ttl", "0s")

	v.SetDefault("matching.hash", "xxh3")
	v.SetDefault("matching.match_id", false)
	v.SetDefault("matching.match_parameters", false)
	v.SetDefault("matching.skip_parameters", []string{})

	v.SetDefault("dedup.detach", true)
	v.SetDefault("dedup.timeout", "60s")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.leeway", "0s")

	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", false)
	v.SetDefault("observe.metrics.exporter", "none")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")
	v.SetDefault("observe.logging.format", "json")
	v.SetDefault("observe.logging.file", "")
	v.SetDefault("observe.logging.max_size_mb", 100)
	v.SetDefault("observe.logging.max_backups", 5)
	v.SetDefault("observe.logging.max_age_days", 28)
	v.SetDefault("observe.logging.compress", false)

	v.SetDefault("health.disk_warn", 0.90)
	v.SetDefault("health.disk_critical", 0.98)
	v.SetDefault("health.timeout", "5s")

	v.SetDefault("secrets.dir", "")
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"mode":        "mode",
	"failover":    "failover",
	"host":        "server.host",
	"port":        "server.port",
	"upstream":    "upstream.target",
	"storage-dir": "storage.dir",
	"compression": "storage.compression",
	"redis-url":   "storage.redis.url",
	"log-level":   "observe.logging.level",
	"log-format":  "observe.logging.format",
}

// RegisterFlags adds the config flags to fs. Flags only override the file
// and environment when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default: inferstore.{yaml,toml,json} in . or /etc/inferstore)")
	fs.String("mode", "serve", "collect or serve")
	fs.String("failover", "none", "none or cache")
	fs.String("host", "0.0.0.0", "listen host")
	fs.Int("port", 50051, "listen port for gRPC and HTTP")
	fs.String("upstream", "", "inference server host:port; empty runs offline")
	fs.String("storage-dir", "collection", "cache root directory")
	fs.String("compression", "none", "payload compression: none or zstd")
	fs.String("redis-url", "", "Redis URL for the shared cache tier")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "json", "json or console")
}

// Load reads the configuration. fs may be nil; when set it must have been
// prepared with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var file string
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
		file, _ = fs.GetString("config")
	}

	if err := readFile(v, file); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName(ServiceName)
	for _, p := range SearchPaths {
		v.AddConfigPath(p)
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("config: read: %w", err)
	}
	return nil
}

// Resolve replaces secret references in the secret-bearing values.
func (c *Config) Resolve(ctx context.Context) error {
	r, err := secret.NewDefaultResolver(map[string]map[string]any{
		"file": {"dir": c.Secrets.Dir},
	})
	if err != nil {
		return fmt.Errorf("config: secrets: %w", err)
	}
	return c.ResolveWith(ctx, r)
}

// ResolveWith is Resolve with a caller-supplied resolver.
func (c *Config) ResolveWith(ctx context.Context, r *secret.Resolver) error {
	var err error
	if c.Storage.Redis.URL, err = r.ResolveValue(ctx, c.Storage.Redis.URL); err != nil {
		return fmt.Errorf("config: storage.redis.url: %w", err)
	}
	if c.Auth.JWT.Secret, err = r.ResolveValue(ctx, c.Auth.JWT.Secret); err != nil {
		return fmt.Errorf("config: auth.jwt.secret: %w", err)
	}
	if c.Auth.APIKeys, err = r.ResolveSlice(ctx, c.Auth.APIKeys); err != nil {
		return fmt.Errorf("config: auth.api_keys: %w", err)
	}
	if c.Upstream.Headers, err = r.ResolveMap(ctx, c.Upstream.Headers); err != nil {
		return fmt.Errorf("config: upstream.headers: %w", err)
	}
	return nil
}
