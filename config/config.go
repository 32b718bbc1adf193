// Package config loads pipeline configuration from a YAML file with
// environment-variable overrides, in the manner of the market-making
// bot's internal/config package: a single typed Config struct bound via
// github.com/spf13/viper, validated before use.
package config

import (
	"fmt"
	"strings"

	"github.com/marketdata/itchpipe/book"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for an itchpipe shard.
type Config struct {
	DataRoot    string        `mapstructure:"data_root"`
	CacheMax    int           `mapstructure:"cache_max"`
	FlushRows   int           `mapstructure:"flush_rows"`
	ShardCount  int           `mapstructure:"shard_count"`
	Mode        string           `mapstructure:"mode"`        // "pedantic" | "permissive"
	Compression string           `mapstructure:"compression"` // "gzip" | "zstd"
	Logging     LoggingConfig    `mapstructure:"logging"`
	Checkpoint  CheckpointConfig `mapstructure:"checkpoint"`
}

// LoggingConfig controls the telemetry package's slog setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "text" | "json"
}

// CheckpointConfig controls walcheckpoint's optional stage-1 crash
// recovery. Disabled by default: a shard with Enabled false behaves
// exactly as if walcheckpoint did not exist.
type CheckpointConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	EveryFrames int    `mapstructure:"every_frames"`
	Dir         string `mapstructure:"dir"`
}

// Defaults applied by Load before the file and environment are read.
func defaults() Config {
	return Config{
		CacheMax:    1000,
		FlushRows:   5000,
		ShardCount:  1,
		Mode:        "permissive",
		Compression: "gzip",
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Checkpoint:  CheckpointConfig{Enabled: false, EveryFrames: 500000},
	}
}

// Load reads config from a YAML file at path, with ITCHPIPE_* environment
// variables overriding any field (e.g. ITCHPIPE_DATA_ROOT,
// ITCHPIPE_LOGGING_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ITCHPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaults()
	v.SetDefault("cache_max", cfg.CacheMax)
	v.SetDefault("flush_rows", cfg.FlushRows)
	v.SetDefault("shard_count", cfg.ShardCount)
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("compression", cfg.Compression)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("checkpoint.enabled", cfg.Checkpoint.Enabled)
	v.SetDefault("checkpoint.every_frames", cfg.Checkpoint.EveryFrames)
	v.SetDefault("checkpoint.dir", cfg.Checkpoint.Dir)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects a config that cannot drive a shard: a missing data
// root, a non-positive shard count, or an unrecognized mode/compression/
// log format.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("config: data_root is required")
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("config: shard_count must be > 0")
	}
	switch c.Mode {
	case "pedantic", "permissive":
	default:
		return fmt.Errorf("config: mode must be \"pedantic\" or \"permissive\", got %q", c.Mode)
	}
	switch c.Compression {
	case "gzip", "zstd":
	default:
		return fmt.Errorf("config: compression must be \"gzip\" or \"zstd\", got %q", c.Compression)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	if c.CacheMax <= 0 {
		return fmt.Errorf("config: cache_max must be > 0")
	}
	if c.FlushRows <= 0 {
		return fmt.Errorf("config: flush_rows must be > 0")
	}
	if c.Checkpoint.Enabled {
		if c.Checkpoint.Dir == "" {
			return fmt.Errorf("config: checkpoint.dir is required when checkpoint.enabled is true")
		}
		if c.Checkpoint.EveryFrames <= 0 {
			return fmt.Errorf("config: checkpoint.every_frames must be > 0")
		}
	}
	return nil
}

// BookMode translates the validated Mode string into a book.Mode.
func (c *Config) BookMode() book.Mode {
	if c.Mode == "pedantic" {
		return book.Pedantic
	}
	return book.Permissive
}
