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

	"github.com/cryptotheoryum/adex-validator/log"
)

// Config contains the CLI configuration.
type Config struct {
	Worker  *WorkerConfig  `koanf:"worker"`
	Server  *ServerConfig  `koanf:"server"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`

	// Pprof, when non-empty, serves the net/http/pprof handlers on the
	// given endpoint.
	Pprof string `koanf:"pprof_endpoint"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Worker != nil {
		if err := cfg.Worker.Validate(); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}
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

// WorkerConfig is the configuration for the consensus worker.
type WorkerConfig struct {
	// Identity is the validator id this node acts as when authoring
	// follower messages.
	Identity string `koanf:"identity"`

	// Channels configures the per-channel tick worker.
	Channels ItemBasedWorkerConfig `koanf:"channels"`

	Storage *StorageConfig `koanf:"storage"`
}

// Validate validates the worker configuration.
func (cfg *WorkerConfig) Validate() error {
	if cfg.Identity == "" {
		return fmt.Errorf("no validator identity provided")
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	return cfg.Storage.Validate(true /* requireMigrations */)
}

// ItemBasedWorkerConfig is the configuration for a worker that
// processes work items in batches.
type ItemBasedWorkerConfig struct {
	// BatchSize is the maximum number of items processed in a batch.
	BatchSize uint64 `koanf:"batch_size"`

	// Interval is the time between batch runs. When zero, the worker
	// uses an exponential backoff that resets on successful batches.
	Interval time.Duration `koanf:"interval"`

	// InterItemDelay spaces out the start of item processing within a
	// batch.
	InterItemDelay time.Duration `koanf:"inter_item_delay"`

	// StopIfQueueEmptyFor, when non-zero, terminates the worker once
	// its queue has been empty for the given duration. Intended for
	// tests.
	StopIfQueueEmptyFor time.Duration `koanf:"stop_if_queue_empty_for"`
}

// ServerConfig contains the API server configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`

	Storage *StorageConfig `koanf:"storage"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	return cfg.Storage.Validate(false /* requireMigrations */)
}

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	// Endpoint is the postgres connection string.
	Endpoint string `koanf:"endpoint"`

	// Migrations is the directory containing schema migrations.
	Migrations string `koanf:"migrations"`

	// If true, all tables in the DB are deleted on startup, forcing a
	// clean slate. Intended for test environments.
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
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(file.Provider(f), yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
