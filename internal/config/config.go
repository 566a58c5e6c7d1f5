// Package config holds the server configuration.
// Values come from built-in defaults, an optional TOML file, a .env file and
// the process environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"time"
)

// StorageKind selects the ledger backend.
type StorageKind string

const (
	StoragePostgres StorageKind = "postgres"
	StorageMemory   StorageKind = "memory"
)

// Config is the complete server configuration.
type Config struct {
	App         AppConfig         `toml:"app"`
	Database    DatabaseConfig    `toml:"database"`
	Auth        AuthConfig        `toml:"auth"`
	Redis       RedisConfig       `toml:"redis"`
	Idempotency IdempotencyConfig `toml:"idempotency"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Port     int         `toml:"port"`
	Env      string      `toml:"env"`
	LogLevel string      `toml:"log_level"`
	Storage  StorageKind `toml:"storage"`
}

// IsDevelopment reports whether the server runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// Addr returns the listen address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf(":%d", a.Port)
}

// DatabaseConfig configures the Postgres backend.
type DatabaseConfig struct {
	URL         string `toml:"url"`
	MaxConns    int32  `toml:"max_conns"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// RedisConfig is optional; an empty address disables the approval guard.
type RedisConfig struct {
	Address string `toml:"address"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// IdempotencyConfig controls X-Idempotency-Key handling.
type IdempotencyConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     Duration `toml:"ttl"`
}

// Duration lets TOML files carry durations as strings ("24h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:     8080,
			Env:      "development",
			LogLevel: "info",
			Storage:  StoragePostgres,
		},
		Database: DatabaseConfig{
			MaxConns:    20,
			AutoMigrate: true,
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			TTL:     Duration{24 * time.Hour},
		},
	}
}

// Validate checks required combinations.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app: port out of range: %d", c.App.Port))
	}

	switch c.App.Storage {
	case StoragePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database: url is required for postgres storage"))
		}
		if c.Database.MaxConns < 1 {
			errs = append(errs, errors.New("database: max_conns must be positive"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("app: invalid storage: %q", c.App.Storage))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth: jwt_secret is required"))
	}

	if c.Idempotency.Enabled && c.Idempotency.TTL.Duration <= 0 {
		errs = append(errs, errors.New("idempotency: ttl must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
