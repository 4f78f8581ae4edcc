// Package config layers s3audit settings from defaults, an optional YAML
// file, S3AUDIT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/s3audit/internal/audit"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. S3AUDIT_PROFILE or
	// S3AUDIT_CONCURRENCY_BUCKETS.
	EnvPrefix = "S3AUDIT"

	// FileName is the config file looked up in the home directory when
	// --config is not given.
	FileName = ".s3audit"
)

// Keys used with viper. Nested keys map to nested YAML sections.
const (
	KeyProfile       = "profile"
	KeyRegion        = "region"
	KeyBuckets       = "buckets"
	KeyAuditsEnable  = "audits.enable"
	KeyAuditsDisable = "audits.disable"
	KeyOutputFormat  = "output.format"
	KeyOutputColor   = "output.color"
	KeyBucketWorkers = "concurrency.buckets"
	KeyFetchWorkers  = "concurrency.fetches"
	KeyRateLimit     = "concurrency.rate_limit"
	KeyLogLevel      = "log_level"
)

// Color modes for text output.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the effective configuration of one run.
type Config struct {
	// Profile is the AWS shared-config profile. Empty means the default
	// credential chain.
	Profile string `mapstructure:"profile" yaml:"profile"`

	// Region overrides the profile's home region.
	Region string `mapstructure:"region" yaml:"region"`

	// Buckets restricts the run to the named buckets. Empty means every
	// bucket the account owns.
	Buckets []string `mapstructure:"buckets" yaml:"buckets"`

	Audits      AuditsConfig      `mapstructure:"audits" yaml:"audits"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// AuditsConfig selects audits by name. Disable is applied before Enable.
type AuditsConfig struct {
	Enable  []string `mapstructure:"enable" yaml:"enable"`
	Disable []string `mapstructure:"disable" yaml:"disable"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Color  string `mapstructure:"color" yaml:"color"`
}

// ConcurrencyConfig bounds parallelism and request rate.
type ConcurrencyConfig struct {
	Buckets int `mapstructure:"buckets" yaml:"buckets"`
	Fetches int `mapstructure:"fetches" yaml:"fetches"`
	// RateLimit is S3 requests per second for the whole run. 0 disables
	// throttling.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Output: OutputConfig{
			Format: "text",
			Color:  ColorAuto,
		},
		Concurrency: ConcurrencyConfig{
			Buckets:   4,
			Fetches:   4,
			RateLimit: 10,
		},
		LogLevel: "warn",
	}
}

// New returns a viper instance with defaults and environment binding set
// up. Callers bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyProfile, d.Profile)
	v.SetDefault(KeyRegion, d.Region)
	v.SetDefault(KeyBuckets, []string{})
	v.SetDefault(KeyAuditsEnable, []string{})
	v.SetDefault(KeyAuditsDisable, []string{})
	v.SetDefault(KeyOutputFormat, d.Output.Format)
	v.SetDefault(KeyOutputColor, d.Output.Color)
	v.SetDefault(KeyBucketWorkers, d.Concurrency.Buckets)
	v.SetDefault(KeyFetchWorkers, d.Concurrency.Fetches)
	v.SetDefault(KeyRateLimit, d.Concurrency.RateLimit)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and decodes the merged settings. An explicit
// path must exist; without one, ~/.s3audit.yaml is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expand config path %q: %w", path, err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", expanded, err)
		}
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg for semantic correctness and returns all errors
// found. An empty slice means the config is valid.
func (c *Config) Validate() []error {
	var errs []error

	if _, err := audit.ParseList(c.Audits.Enable); err != nil {
		errs = append(errs, fmt.Errorf("audits.enable: %w", err))
	}
	if _, err := audit.ParseList(c.Audits.Disable); err != nil {
		errs = append(errs, fmt.Errorf("audits.disable: %w", err))
	}

	switch strings.ToLower(c.Output.Format) {
	case "text", "csv":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown value %q; valid values: text, csv", c.Output.Format))
	}
	switch strings.ToLower(c.Output.Color) {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("output.color: unknown value %q; valid values: auto, always, never", c.Output.Color))
	}

	if c.Concurrency.Buckets < 1 {
		errs = append(errs, fmt.Errorf("concurrency.buckets: must be at least 1, got %d", c.Concurrency.Buckets))
	}
	if c.Concurrency.Fetches < 1 {
		errs = append(errs, fmt.Errorf("concurrency.fetches: must be at least 1, got %d", c.Concurrency.Fetches))
	}
	if c.Concurrency.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("concurrency.rate_limit: must not be negative, got %g", c.Concurrency.RateLimit))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	for i, b := range c.Buckets {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("buckets[%d]: empty bucket name", i))
		}
	}
	return errs
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
