// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/oasisprotocol/blockview/log"
)

// Config contains the CLI configuration.
type Config struct {
	Server  *ServerConfig  `koanf:"server"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

// ServerConfig contains the block page server configuration.
type ServerConfig struct {
	// Endpoint is the address to serve pages and the JSON API on.
	Endpoint string `koanf:"endpoint"`

	// Denomination is the native token symbol shown next to fees.
	Denomination string `koanf:"denomination"`

	// Decimals is the number of decimals between base units and the
	// display unit of the native token.
	Decimals uint8 `koanf:"decimals"`

	// RequestTimeout bounds the time spent resolving a single page.
	// Unset means no timeout beyond the HTTP server's own.
	RequestTimeout *time.Duration `koanf:"request_timeout"`

	Storage *StorageConfig `koanf:"storage"`
	Cache   *CacheConfig   `koanf:"cache"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	if cfg.RequestTimeout != nil && *cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", *cfg.RequestTimeout)
	}
	if cfg.Decimals > 36 {
		return fmt.Errorf("decimals %d out of range", cfg.Decimals)
	}
	if cfg.Cache != nil {
		if err := cfg.Cache.Validate(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return cfg.Storage.Validate(false /* requireMigrations */)
}

// StorageBackend is a storage backend.
type StorageBackend uint

const (
	// BackendPostgres is the PostgreSQL storage backend.
	BackendPostgres StorageBackend = iota
)

// String returns the string representation of a StorageBackend.
func (sb *StorageBackend) String() string {
	switch *sb {
	case BackendPostgres:
		return "postgres"
	default:
		panic("config: unsupported storage backend")
	}
}

// Set sets the StorageBackend to the value specified by the provided string.
func (sb *StorageBackend) Set(s string) error {
	switch strings.ToLower(s) {
	case "postgres":
		*sb = BackendPostgres
	default:
		return fmt.Errorf("config: invalid storage backend: '%s'", s)
	}
	return nil
}

// Type returns the list of supported StorageBackends.
func (sb *StorageBackend) Type() string {
	return "[postgres]"
}

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	// Endpoint is the database connection string.
	Endpoint string `koanf:"endpoint"`

	// Backend is the storage backend to select.
	Backend string `koanf:"backend"`

	// Migrations is the golang-migrate source URL of the schema
	// migrations, e.g. file://storage/migrations.
	Migrations string `koanf:"migrations"`

	// If true, all tables are dropped before migrations run.
	WipeStorage bool `koanf:"DANGER__WIPE_STORAGE_ON_STARTUP"`
}

// Validate validates the storage configuration.
func (cfg *StorageConfig) Validate(requireMigrations bool) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed storage endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Migrations == "" && requireMigrations {
		return fmt.Errorf("invalid path to migrations '%s'", cfg.Migrations)
	}
	var sb StorageBackend
	return sb.Set(cfg.Backend)
}

// CacheConfig configures the block caches of the resolver.
type CacheConfig struct {
	// MaxBlocks is the number of resolved blocks kept in memory.
	MaxBlocks int64 `koanf:"max_blocks"`

	// Dir, if set, enables the on-disk cache of finalized blocks.
	Dir string `koanf:"dir"`
}

// Validate validates the cache configuration.
func (cfg *CacheConfig) Validate() error {
	if cfg.MaxBlocks < 0 {
		return fmt.Errorf("max_blocks must not be negative, got %d", cfg.MaxBlocks)
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`

	// PprofEndpoint, if set, serves the Go runtime profiles.
	PprofEndpoint string `koanf:"pprof_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig initializes configuration from file, then applies
// environment overrides.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f))
}

func initConfig(p koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	// `__` is the hierarchy delimiter, e.g. SERVER__STORAGE__ENDPOINT.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
