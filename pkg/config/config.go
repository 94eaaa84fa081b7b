package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the phone lookup service.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Lookup    LookupConfig    `mapstructure:"lookup"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	IngressTokens   []string      `mapstructure:"ingress_tokens"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl" validate:"gt=0"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// AdminConfig configures authentication of the administrative surface.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
	Audience  string `mapstructure:"audience" validate:"required"`
}

// LoggerConfig controls log level, format and optional file output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string `mapstructure:"environment"`
}

// RedisConfig defines connection parameters for Redis.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverNone     = "none"
)

// StoreConfig selects the durable account store.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" validate:"required,oneof=postgres sqlite none"`
	DSN           string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	SQLitePath    string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LedgerConfig holds credit accounting parameters.
type LedgerConfig struct {
	StartingBalance     int64         `mapstructure:"starting_balance" validate:"gte=0"`
	IdleThreshold       time.Duration `mapstructure:"idle_threshold" validate:"gt=0"`
	RefundOnUnavailable bool          `mapstructure:"refund_on_unavailable"`
	PersistRetries      bool          `mapstructure:"persist_retries"`
}

// RateLimitRule is a single limit/window pair.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gt=0"`
	Window string `mapstructure:"window" validate:"required"`
}

// RateLimitConfig holds per-user lookup limits and the per-client limit of the admin surface.
type RateLimitConfig struct {
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Admin     RateLimitRule `mapstructure:"admin"`
	Whitelist []string      `mapstructure:"whitelist"`
}

// LookupConfig configures the external validation API.
type LookupConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// JobsConfig holds cron specs for background sweeps.
type JobsConfig struct {
	EvictIdleSpec        string `mapstructure:"evict_idle_spec" validate:"required"`
	WindowCleanupSpec    string `mapstructure:"window_cleanup_spec" validate:"required"`
	GaugesSpec           string `mapstructure:"gauges_spec" validate:"required"`
	IdempotencySweepSpec string `mapstructure:"idempotency_sweep_spec" validate:"required"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// String renders a short, secret-free description for start-up logs.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s port=%s store=%s log_level=%s", c.AppEnv, c.Server.Port, c.Store.Driver, c.Logger.Level)
}
