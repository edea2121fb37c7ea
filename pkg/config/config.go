// Package config loads importcost settings from .importcost.yaml and
// IMPORTCOST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/importcost/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers      = errors.New("engine workers must be positive")
	ErrInvalidMaxFiles     = errors.New("engine max files must be positive")
	ErrInvalidBundleSize   = errors.New("invalid engine max bundle size")
	ErrInvalidCacheEntries = errors.New("cache max entries must be positive")
	ErrInvalidLogLevel     = errors.New("invalid logging level")
	ErrInvalidSampleRatio  = errors.New("telemetry sample ratio must be between 0 and 1")
)

const (
	configName = ".importcost"
	configType = "yaml"
	envPrefix  = "IMPORTCOST"
)

// Config holds all importcost configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// EngineConfig tunes the size-estimation engine.
type EngineConfig struct {
	MaxBundleSize string `mapstructure:"max_bundle_size"`
	Workers       int    `mapstructure:"workers"`
	MaxFiles      int    `mapstructure:"max_files"`
	StripComments bool   `mapstructure:"strip_comments"`
}

// CacheConfig controls the package size cache.
type CacheConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxEntries int    `mapstructure:"max_entries"`
	Enabled    bool   `mapstructure:"enabled"`
	Persist    bool   `mapstructure:"persist"`
}

// LoggingConfig controls stderr logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// Without configPath, .importcost.yaml is looked up in the working
// directory and then in $HOME; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType(configType)
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("engine.workers", DefaultEngineWorkers)
	viperCfg.SetDefault("engine.max_files", DefaultEngineMaxFiles)
	viperCfg.SetDefault("engine.max_bundle_size", DefaultEngineMaxBundleSize)
	viperCfg.SetDefault("engine.strip_comments", DefaultEngineStripComments)

	viperCfg.SetDefault("cache.enabled", DefaultCacheEnabled)
	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
	viperCfg.SetDefault("cache.directory", DefaultCacheDirectory)
	viperCfg.SetDefault("cache.persist", DefaultCachePersist)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
	viperCfg.SetDefault("telemetry.environment", "")
}

// Validate checks every field that has a constrained range.
func (c *Config) Validate() error {
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Engine.Workers)
	}

	if c.Engine.MaxFiles <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFiles, c.Engine.MaxFiles)
	}

	if _, err := c.MaxBundleBytes(); err != nil {
		return err
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheEntries, c.Cache.MaxEntries)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// MaxBundleBytes parses engine.max_bundle_size ("50MB", "512KiB").
func (c *Config) MaxBundleBytes() (int64, error) {
	size, err := humanize.ParseBytes(c.Engine.MaxBundleSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidBundleSize, c.Engine.MaxBundleSize, err)
	}

	if size == 0 || size > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBundleSize, c.Engine.MaxBundleSize)
	}

	return safeconv.MustUint64ToInt64(size), nil
}

// LogLevel parses logging.level (debug, info, warn, error).
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}
