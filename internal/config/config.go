// Package config provides configuration management for unchained using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Values are read from .unchained.yml (or the file named by
// UNCHAINED_CONFIG_FILE), overridden by UNCHAINED_ prefixed environment
// variables and finally by flags bound into viper. Defaults are applied
// after unmarshalling and the result is validated before use.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
)

const (
	DefaultServerAddress  = "0.0.0.0:8080"
	DefaultThreads        = 4
	DefaultManifest       = "site.yml"
	DefaultRoot           = "."
	DefaultOpening        = "{*"
	DefaultClosing        = "*}"
	DefaultDebounce       = 100 * time.Millisecond
	DefaultMetricsAddress = "127.0.0.1:9090"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Site        SiteConfig        `mapstructure:"site" yaml:"site"`
	Templates   TemplatesConfig   `mapstructure:"templates" yaml:"templates"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Address        string            `mapstructure:"address" yaml:"address"`
	Threads        int               `mapstructure:"threads" yaml:"threads"`
	DefaultHeaders map[string]string `mapstructure:"default_headers" yaml:"default_headers"`
}

type SiteConfig struct {
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
	Root     string `mapstructure:"root" yaml:"root"`
}

type TemplatesConfig struct {
	Opening string `mapstructure:"opening" yaml:"opening"`
	Closing string `mapstructure:"closing" yaml:"closing"`
}

type DevelopmentConfig struct {
	Watch    bool          `mapstructure:"watch" yaml:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvPrefix prefixes every environment variable override, e.g.
// UNCHAINED_SERVER_ADDRESS for server.address.
const EnvPrefix = "UNCHAINED"

// envKeys are the keys that may be overridden from the environment.
var envKeys = []string{
	"server.address",
	"server.threads",
	"site.manifest",
	"site.root",
	"templates.opening",
	"templates.closing",
	"development.watch",
	"development.debounce",
	"metrics.enabled",
	"metrics.address",
	"log.level",
	"log.format",
}

// BindEnv makes v read UNCHAINED_ prefixed environment variables.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "could not bind "+key)
		}
	}

	return nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "could not decode configuration")
	}

	applyDefaults(v, &config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(v *viper.Viper, config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = DefaultServerAddress
	}
	if !v.IsSet("server.threads") {
		config.Server.Threads = DefaultThreads
	}
	if config.Server.DefaultHeaders == nil {
		config.Server.DefaultHeaders = map[string]string{}
	}

	if config.Site.Manifest == "" {
		config.Site.Manifest = DefaultManifest
	}
	if config.Site.Root == "" {
		config.Site.Root = DefaultRoot
	}

	// Markers explicitly set to "" are left alone so validation rejects them.
	if !v.IsSet("templates.opening") {
		config.Templates.Opening = DefaultOpening
	}
	if !v.IsSet("templates.closing") {
		config.Templates.Closing = DefaultClosing
	}

	if config.Development.Debounce <= 0 {
		config.Development.Debounce = DefaultDebounce
	}

	if config.Metrics.Address == "" {
		config.Metrics.Address = DefaultMetricsAddress
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}

// LoggerConfig converts the log section into a logger configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format

	return cfg
}
