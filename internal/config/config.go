// Package config loads the engine's configuration from file, environment,
// and functional options, mirroring a core.Config three-layer priority
// (defaults < environment < functional options) but built on
// github.com/spf13/viper instead of a hand-rolled env-tag reader.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Database selects the durable store backend, per the "Durable Store
// Façade — backend selection" rule: TursoURL/TursoToken select a remote
// libsql-shaped backend behind the same store.Store façade; otherwise
// RedbPath (or a literal ":memory:") selects the local modernc.org/sqlite
// file or in-memory backend.
type Database struct {
	TursoURL   string `mapstructure:"turso_url"`
	TursoToken string `mapstructure:"turso_token"`
	RedbPath   string `mapstructure:"redb_path"`
}

// Storage controls the secondary cache tier and connection pooling.
type Storage struct {
	MaxEpisodesCache int `mapstructure:"max_episodes_cache"`
	CacheTTLSeconds  int `mapstructure:"cache_ttl_seconds"`
	PoolSize         int `mapstructure:"pool_size"`
	RedisURL         string `mapstructure:"redis_url"`
}

// CLI controls the command-line front end's output and batching.
type CLI struct {
	DefaultFormat string `mapstructure:"default_format"` // "human" or "json"
	ProgressBars  bool   `mapstructure:"progress_bars"`
	BatchSize     int    `mapstructure:"batch_size"`
}

// Logging mirrors a LoggingConfig idiom: structured vs. human output.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Config is the fully-resolved configuration, after file, environment, and
// preset/option layers have all been applied.
type Config struct {
	Database Database `mapstructure:"database"`
	Storage  Storage  `mapstructure:"storage"`
	CLI      CLI      `mapstructure:"cli"`
	Logging  Logging  `mapstructure:"logging"`
}

// Option mutates a Config after file and environment layers have been
// applied, taking highest priority — the same role functional options
// play over a core.Config.
type Option func(*Config)

// Load reads configuration from path (if non-empty; TOML, YAML, and JSON
// are all auto-detected by viper from the extension) layered under
// defaults, applies environment variable overrides, detects the execution
// environment to auto-select a preset, and finally applies opts.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEMEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyStandardEnvOverrides(&cfg)
	applyDetectedPreset(&cfg)

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.redb_path", ":memory:")
	v.SetDefault("storage.max_episodes_cache", 1000)
	v.SetDefault("storage.cache_ttl_seconds", 300)
	v.SetDefault("storage.pool_size", 4)
	v.SetDefault("cli.default_format", "human")
	v.SetDefault("cli.progress_bars", true)
	v.SetDefault("cli.batch_size", 50)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// applyStandardEnvOverrides layers a fixed set of well-known environment
// variables (which don't follow the MEMEX_ prefix convention AutomaticEnv
// uses) on top of whatever file/default values were loaded.
func applyStandardEnvOverrides(cfg *Config) {
	if v := os.Getenv("TURSO_URL"); v != "" {
		cfg.Database.TursoURL = v
	}
	if v := os.Getenv("TURSO_TOKEN"); v != "" {
		cfg.Database.TursoToken = v
	}
}

// cloudEnvVars are platform-presence markers: any one of them being set
// indicates the process is running on a managed hosting platform rather
// than a developer's machine.
var cloudEnvVars = []string{"RENDER", "HEROKU", "FLY_IO", "RAILWAY", "VERCEL"}

func runningOnCloudPlatform() bool {
	for _, name := range cloudEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

func runningInCI() bool {
	return os.Getenv("CI") != ""
}

// applyDetectedPreset mirrors a DetectEnvironment idiom: it inspects
// ambient environment markers and applies a preset before functional
// options get their (higher-priority) say. CI takes precedence over a
// cloud-platform match, since CI runners often also set platform markers.
func applyDetectedPreset(cfg *Config) {
	switch {
	case runningInCI():
		Memory(cfg)
	case runningOnCloudPlatform():
		Cloud(cfg)
	}
}
