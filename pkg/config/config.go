// Package config provides configuration loading and validation for the rbmap CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Sentinel validation errors.
var (
	ErrInvalidOperations  = errors.New("stress operations must be positive")
	ErrInvalidKeySpace    = errors.New("stress key space must be positive")
	ErrInvalidDeleteRatio = errors.New("stress delete ratio must be within [0, 1]")
	ErrInvalidCheckEvery  = errors.New("stress check interval must not be negative")
	ErrInvalidSampleEvery = errors.New("stress sample interval must be positive")
	ErrInvalidLogFormat   = errors.New("unsupported log format")
)

const (
	configName = "rbmap"
	envPrefix  = "RBMAP"
)

// Config holds all configuration for the rbmap CLI.
type Config struct {
	Stress    StressConfig    `mapstructure:"stress"    yaml:"stress"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// StressConfig describes the randomized workload run by the stress command.
type StressConfig struct {
	Seed        int64   `mapstructure:"seed"         yaml:"seed"`
	Operations  int     `mapstructure:"operations"   yaml:"operations"`
	KeySpace    int     `mapstructure:"key_space"    yaml:"key_space"`
	DeleteRatio float64 `mapstructure:"delete_ratio" yaml:"delete_ratio"`
	// CheckEvery runs the invariant checker every N operations. Zero checks only at the end.
	CheckEvery  int `mapstructure:"check_every"  yaml:"check_every"`
	SampleEvery int `mapstructure:"sample_every" yaml:"sample_every"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	MetricsAddr  string `mapstructure:"metrics_addr"  yaml:"metrics_addr"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// RBMAP_* environment variables, in increasing order of precedence.
// An explicit configPath must exist; without one, rbmap.yaml is looked up
// in the working directory and ./config and may be absent.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// LogLevel maps the configured level name onto a [slog.Level].
// Unknown names fall back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Logging.Level))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return out, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("stress.seed", DefaultStressSeed)
	viperCfg.SetDefault("stress.operations", DefaultStressOperations)
	viperCfg.SetDefault("stress.key_space", DefaultStressKeySpace)
	viperCfg.SetDefault("stress.delete_ratio", DefaultStressDeleteRatio)
	viperCfg.SetDefault("stress.check_every", DefaultStressCheckEvery)
	viperCfg.SetDefault("stress.sample_every", DefaultStressSampleEvery)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultMetricsAddr)
}

func validateConfig(config *Config) error {
	err := config.Stress.Validate()
	if err != nil {
		return err
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	return nil
}

// Validate reports the first out-of-range workload parameter.
func (s *StressConfig) Validate() error {
	if s.Operations <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOperations, s.Operations)
	}

	if s.KeySpace <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, s.KeySpace)
	}

	if s.DeleteRatio < 0 || s.DeleteRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidDeleteRatio, s.DeleteRatio)
	}

	if s.CheckEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCheckEvery, s.CheckEvery)
	}

	if s.SampleEvery <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleEvery, s.SampleEvery)
	}

	return nil
}
