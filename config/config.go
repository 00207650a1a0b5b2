package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jonwraymond/inferstore/auth"
	"github.com/jonwraymond/inferstore/cache"
	"github.com/jonwraymond/inferstore/fingerprint"
	"github.com/jonwraymond/inferstore/gateway"
	"github.com/jonwraymond/inferstore/health"
	"github.com/jonwraymond/inferstore/inflight"
	"github.com/jonwraymond/inferstore/observe"
	"github.com/jonwraymond/inferstore/tensor"
	"github.com/jonwraymond/inferstore/upstream"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete process configuration.
type Config struct {
	Mode     string         `mapstructure:"mode"`
	Failover string         `mapstructure:"failover"`
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Matching MatchingConfig `mapstructure:"matching"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Observe  ObserveConfig  `mapstructure:"observe"`
	Health   HealthConfig   `mapstructure:"health"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UpstreamConfig struct {
	Target        string            `mapstructure:"target"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	TLS           bool              `mapstructure:"tls"`
	Headers       map[string]string `mapstructure:"headers"`
	Retry         RetryConfig       `mapstructure:"retry"`
	Circuit       CircuitConfig     `mapstructure:"circuit"`
	MaxConcurrent int               `mapstructure:"max_concurrent"`
	RateLimit     float64           `mapstructure:"rate_limit"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type CircuitConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type StorageConfig struct {
	Dir         string      `mapstructure:"dir"`
	Compression string      `mapstructure:"compression"`
	Sync        bool        `mapstructure:"sync"`
	Redis       RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	URL    string        `mapstructure:"url"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type MatchingConfig struct {
	Hash            string   `mapstructure:"hash"`
	MatchID         bool     `mapstructure:"match_id"`
	MatchParameters bool     `mapstructure:"match_parameters"`
	SkipParameters  []string `mapstructure:"skip_parameters"`
}

type DedupConfig struct {
	Detach  bool          `mapstructure:"detach"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKeys []string      `mapstructure:"api_keys"`
	JWT     JWTAuthConfig `mapstructure:"jwt"`
}

type JWTAuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

type ObserveConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HealthConfig struct {
	DiskWarn     float64       `mapstructure:"disk_warn"`
	DiskCritical float64       `mapstructure:"disk_critical"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SecretsConfig configures secret references. Dir is the base directory
// for relative secretref:file paths.
type SecretsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if _, err := gateway.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: mode: %w", ErrInvalidConfig, err)
	}
	if _, err := gateway.ParseFailover(c.Failover); err != nil {
		return fmt.Errorf("%w: failover: %w", ErrInvalidConfig, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: server.max_message_bytes must be positive", ErrInvalidConfig)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("%w: upstream.timeout must be positive", ErrInvalidConfig)
	}
	if c.Upstream.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: upstream.retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Upstream.MaxConcurrent < 0 || c.Upstream.RateLimit < 0 {
		return fmt.Errorf("%w: upstream limits must not be negative", ErrInvalidConfig)
	}
	if c.Mode == string(gateway.ModeCollect) && c.Upstream.Target == "" {
		return fmt.Errorf("%w: collect mode needs upstream.target", ErrInvalidConfig)
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("%w: storage.dir is required", ErrInvalidConfig)
	}
	if _, err := c.CachePolicy(); err != nil {
		return fmt.Errorf("%w: storage: %w", ErrInvalidConfig, err)
	}
	if c.Storage.Redis.TTL < 0 {
		return fmt.Errorf("%w: storage.redis.ttl must not be negative", ErrInvalidConfig)
	}
	if _, err := fingerprint.NewHasher(c.Matching.Hash); err != nil {
		return fmt.Errorf("%w: matching.hash: %w", ErrInvalidConfig, err)
	}
	if c.Dedup.Timeout < 0 {
		return fmt.Errorf("%w: dedup.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWT.Secret == "" {
		return fmt.Errorf("%w: auth.enabled needs auth.api_keys or auth.jwt.secret", ErrInvalidConfig)
	}
	if h := c.Health; h.DiskWarn <= 0 || h.DiskWarn > h.DiskCritical || h.DiskCritical > 1 {
		return fmt.Errorf("%w: health disk thresholds need 0 < disk_warn <= disk_critical <= 1", ErrInvalidConfig)
	}
	obs := c.ObserveConfig("")
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GatewayConfig returns the mode controller settings.
func (c *Config) GatewayConfig() (gateway.Config, error) {
	mode, err := gateway.ParseMode(c.Mode)
	if err != nil {
		return gateway.Config{}, err
	}
	failover, err := gateway.ParseFailover(c.Failover)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		Mode:     mode,
		Failover: failover,
		Inflight: inflight.Config{Detach: c.Dedup.Detach, Timeout: c.Dedup.Timeout},
	}, nil
}

// CachePolicy returns the file store write policy.
func (c *Config) CachePolicy() (cache.Policy, error) {
	codec, err := cache.ParseCodec(c.Storage.Compression)
	if err != nil {
		return cache.Policy{}, err
	}
	p := cache.DefaultPolicy()
	p.Sync = c.Storage.Sync
	p.Compression = codec
	return p, p.Validate()
}

// RedisConfig returns the shared tier settings, or false when no Redis URL
// is configured.
func (c *Config) RedisConfig() (cache.RedisConfig, bool) {
	if c.Storage.Redis.URL == "" {
		return cache.RedisConfig{}, false
	}
	codec, _ := cache.ParseCodec(c.Storage.Compression)
	return cache.RedisConfig{
		URL:         c.Storage.Redis.URL,
		Prefix:      c.Storage.Redis.Prefix,
		TTL:         c.Storage.Redis.TTL,
		Compression: codec,
	}, true
}

// Keyer returns the fingerprint generator for the matching settings.
func (c *Config) Keyer() (*fingerprint.Generator, error) {
	hasher, err := fingerprint.NewHasher(c.Matching.Hash)
	if err != nil {
		return nil, err
	}
	canon := tensor.NewCanonicalizer(tensor.Options{
		MatchID:         c.Matching.MatchID,
		MatchParameters: c.Matching.MatchParameters,
		SkipParameters:  c.Matching.SkipParameters,
	})
	return fingerprint.NewGenerator(canon, hasher), nil
}

// UpstreamClientConfig returns the upstream client settings, or false when
// the gateway runs offline.
func (c *Config) UpstreamClientConfig() (upstream.Config, bool) {
	if c.Upstream.Target == "" {
		return upstream.Config{}, false
	}
	return upstream.Config{
		Target:              c.Upstream.Target,
		Timeout:             c.Upstream.Timeout,
		TLS:                 c.Upstream.TLS,
		Headers:             c.Upstream.Headers,
		MaxMessageBytes:     c.Server.MaxMessageBytes,
		MaxAttempts:         c.Upstream.Retry.MaxAttempts,
		CircuitMaxFailures:  c.Upstream.Circuit.MaxFailures,
		CircuitResetTimeout: c.Upstream.Circuit.ResetTimeout,
		MaxConcurrent:       c.Upstream.MaxConcurrent,
		RateLimit:           c.Upstream.RateLimit,
	}, true
}

// AuthConfig returns the authenticator settings.
func (c *Config) AuthConfig() auth.Config {
	cfg := auth.Config{
		Enabled: c.Auth.Enabled,
		APIKeys: c.Auth.APIKeys,
		JWT: auth.JWTConfig{
			Issuer:   c.Auth.JWT.Issuer,
			Audience: c.Auth.JWT.Audience,
			Leeway:   c.Auth.JWT.Leeway,
		},
	}
	if c.Auth.JWT.Secret != "" {
		cfg.JWT.Secret = []byte(c.Auth.JWT.Secret)
	}
	return cfg
}

// ObserveConfig returns the telemetry settings for the given build version.
func (c *Config) ObserveConfig(version string) observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled:    o.Logging.Enabled,
			Level:      o.Logging.Level,
			Format:     o.Logging.Format,
			File:       o.Logging.File,
			MaxSizeMB:  o.Logging.MaxSizeMB,
			MaxBackups: o.Logging.MaxBackups,
			MaxAgeDays: o.Logging.MaxAgeDays,
			Compress:   o.Logging.Compress,
		},
	}
}

// DiskConfig returns the disk checker settings for the storage root.
func (c *Config) DiskConfig() health.DiskConfig {
	return health.DiskConfig{
		Path:     c.Storage.Dir,
		Warn:     c.Health.DiskWarn,
		Critical: c.Health.DiskCritical,
	}
}
