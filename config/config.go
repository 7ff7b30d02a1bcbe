// Package config loads CLI settings from defaults, an optional YAML file,
// SECRETS_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/generator"
)

const (
	EnvPrefix = "SECRETS"

	KeyDefaultLength = "default_length"
	KeyCopy          = "copy"
	KeyCopyWindow    = "copy_window"
	KeyGenerateDelay = "generate_delay"
	KeyStrict        = "strict"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
)

var ErrExists = errors.New("config file already exists")

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type Config struct {
	DefaultLength int           `mapstructure:"default_length" yaml:"default_length"`
	Copy          bool          `mapstructure:"copy" yaml:"copy"`
	CopyWindow    time.Duration `mapstructure:"copy_window" yaml:"copy_window"`
	GenerateDelay time.Duration `mapstructure:"generate_delay" yaml:"generate_delay"`
	Strict        bool          `mapstructure:"strict" yaml:"strict"`
	Log           LogConfig     `mapstructure:"log" yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DefaultLength: authsecret.DefaultPreset().Bytes,
		Copy:          true,
		CopyWindow:    generator.DefaultCopyWindow,
		GenerateDelay: generator.DefaultMinDuration,
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/authsecret/config.yaml (or the OS equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "authsecret", "config.yaml")
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyDefaultLength, d.DefaultLength)
	v.SetDefault(KeyCopy, d.Copy)
	v.SetDefault(KeyCopyWindow, d.CopyWindow)
	v.SetDefault(KeyGenerateDelay, d.GenerateDelay)
	v.SetDefault(KeyStrict, d.Strict)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
}

// Load resolves the configuration. An explicit path must exist; with an
// empty path the default location is read only if present. Flags should be
// bound to v before calling Load.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = DefaultPath()
		if _, err := os.Stat(file); file == "" || errors.Is(err, fs.ErrNotExist) {
			file = ""
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := authsecret.PresetFor(c.DefaultLength); err != nil {
		return fmt.Errorf("default_length: %w", err)
	}
	if c.CopyWindow <= 0 {
		return fmt.Errorf("copy_window must be positive, got %s", c.CopyWindow)
	}
	if c.GenerateDelay < 0 {
		return fmt.Errorf("generate_delay must not be negative, got %s", c.GenerateDelay)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// WriteDefault writes the built-in settings as YAML to path.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
