package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileEnv names the variable pointing at an optional TOML file.
const FileEnv = "SHOPFLOOR_CONFIG"

// LoadError reports a configuration source that could not be read.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load builds the configuration from defaults, the TOML file named by
// SHOPFLOOR_CONFIG, an optional .env in the working directory and the
// environment. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Path: ".env", Err: err}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, &LoadError{Path: "environment", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a TOML file over cfg so missing keys keep their defaults.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	integer("APP_PORT", &cfg.App.Port)
	str("APP_ENV", &cfg.App.Env)
	str("LOG_LEVEL", &cfg.App.LogLevel)

	storage := string(cfg.App.Storage)
	str("STORAGE", &storage)
	cfg.App.Storage = StorageKind(strings.ToLower(storage))

	str("DATABASE_URL", &cfg.Database.URL)
	maxConns := int(cfg.Database.MaxConns)
	integer("DB_MAX_CONNS", &maxConns)
	cfg.Database.MaxConns = int32(maxConns)
	boolean("AUTO_MIGRATE", &cfg.Database.AutoMigrate)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("REDIS_ADDRESS", &cfg.Redis.Address)

	boolean("IDEMPOTENCY_ENABLED", &cfg.Idempotency.Enabled)
	duration("IDEMPOTENCY_TTL", &cfg.Idempotency.TTL.Duration)

	return errors.Join(errs...)
}
