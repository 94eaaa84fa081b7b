// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// env files are optional
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))

	cfg, err := LoadFrom(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// LoadFrom reads, decodes and validates configuration through an already configured viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return decode(v)
}

// Watch re-decodes the configuration whenever the backing file changes and hands valid
// results to onChange. Invalid edits are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	for name, rule := range map[string]RateLimitRule{"per_user": cfg.RateLimit.PerUser, "admin": cfg.RateLimit.Admin} {
		window, err := time.ParseDuration(rule.Window)
		if err != nil {
			return nil, fmt.Errorf("validate config: ratelimit.%s.window: %w", name, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("validate config: ratelimit.%s.window must be positive", name)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.ingress_tokens", []string{})
	v.SetDefault("server.idempotency_ttl", 24*time.Hour)
	v.SetDefault("admin.audience", "phonelookup-admin")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.sqlite_path", "phonelookup.db")
	v.SetDefault("store.migrations_dir", "migrations")
	v.SetDefault("ledger.starting_balance", 5)
	v.SetDefault("ledger.idle_threshold", 30*24*time.Hour)
	v.SetDefault("ledger.refund_on_unavailable", true)
	v.SetDefault("ledger.persist_retries", true)
	v.SetDefault("ratelimit.per_user.limit", 10)
	v.SetDefault("ratelimit.per_user.window", "60s")
	v.SetDefault("ratelimit.admin.limit", 60)
	v.SetDefault("ratelimit.admin.window", "1m")
	v.SetDefault("ratelimit.whitelist", []string{})
	v.SetDefault("lookup.base_url", "http://apilayer.net/api/validate")
	v.SetDefault("lookup.api_key", "")
	v.SetDefault("lookup.timeout", 10*time.Second)
	v.SetDefault("jobs.evict_idle_spec", "@hourly")
	v.SetDefault("jobs.window_cleanup_spec", "@every 1m")
	v.SetDefault("jobs.gauges_spec", "@every 30s")
	v.SetDefault("jobs.idempotency_sweep_spec", "@every 6h")
}
