package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	GC      GCConfig      `mapstructure:"gc"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// EngineConfig defines what the emulated server looks like to clients
type EngineConfig struct {
	Databases            int    `mapstructure:"databases"`
	Version              string `mapstructure:"version"`                // emulated server version, gates commands and options
	NotifyKeyspaceEvents string `mapstructure:"notify_keyspace_events"` // same flags as the server config parameter
	PubSubBuffer         int    `mapstructure:"pubsub_buffer"`          // undelivered messages kept per subscriber
	Seed                 int64  `mapstructure:"seed"`                   // sampling seed, 0 picks one from the clock
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// FlagKeys maps command line flag names to the config keys they override
var FlagKeys = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"databases":       "engine.databases",
	"redis-version":   "engine.version",
	"notify-keyspace": "engine.notify_keyspace_events",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"metrics":         "metrics.enabled",
	"metrics-addr":    "metrics.addr",
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command line flags taking precedence over the file
// and the environment. Only flags named in FlagKeys are bound
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix("MOONMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	return decode(v)
}

// Default returns the built-in configuration without reading files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		// defaults are static, failing here is a programming error
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot start with
func (c *Config) Validate() error {
	if c.Engine.Databases <= 0 {
		return errors.Errorf("engine.databases must be positive, got %d", c.Engine.Databases)
	}
	if c.Engine.PubSubBuffer <= 0 {
		return errors.Errorf("engine.pubsub_buffer must be positive, got %d", c.Engine.PubSubBuffer)
	}
	if c.GC.Enabled && c.GC.Interval <= 0 {
		return errors.New("gc.interval must be positive when gc is enabled")
	}
	return nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "6380")

	// Engine
	v.SetDefault("engine.databases", 16)
	v.SetDefault("engine.version", "7.2.0")
	v.SetDefault("engine.notify_keyspace_events", "")
	v.SetDefault("engine.pubsub_buffer", 1024)
	v.SetDefault("engine.seed", 0)

	// GC
	gc := DefaultGCConfig()
	v.SetDefault("gc.enabled", gc.Enabled)
	v.SetDefault("gc.interval", gc.Interval)
	v.SetDefault("gc.samples_per_check", gc.SamplesPerCheck)
	v.SetDefault("gc.match_threshold", gc.MatchThreshold)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stderr")

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9121")
}
