// Package config loads runtime configuration for the demo binaries.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/sgrpc/errors"
)

// Config is the full configuration tree.
type Config struct {
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
}

// RuntimeConfig sizes the execution context.
type RuntimeConfig struct {
	Workers      int `mapstructure:"workers"`
	ClientQueues int `mapstructure:"client_queues"`
}

// ServerConfig configures the greeter container.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	WorkQueues int `mapstructure:"work_queues"`
}

// ClientConfig configures the greeter client.
type ClientConfig struct {
	Target string  `mapstructure:"target"`
	Rate   float64 `mapstructure:"rate"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("runtime.workers", 2)
	v.SetDefault("runtime.client_queues", 1)
	v.SetDefault("server.port", 0)
	v.SetDefault("server.work_queues", 1)
	v.SetDefault("client.target", "127.0.0.1:50051")
	v.SetDefault("client.rate", 0)
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 1)
}

// Load reads configuration from the given file (TOML), or defaults when the
// path is empty. Environment variables prefixed SGRPC_ override file values,
// e.g. SGRPC_RUNTIME_WORKERS=8.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("SGRPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the runtime's construction preconditions up front, so
// misconfiguration fails at the boundary instead of inside the context.
func (c *Config) Validate() error {
	if c.Runtime.Workers < 1 {
		return errors.Newf("runtime.workers must be at least 1, got %d", c.Runtime.Workers)
	}
	if c.Runtime.ClientQueues < 1 {
		return errors.Newf("runtime.client_queues must be at least 1, got %d", c.Runtime.ClientQueues)
	}
	if c.Server.WorkQueues < 1 {
		return errors.Newf("server.work_queues must be at least 1, got %d", c.Server.WorkQueues)
	}
	if c.Client.Rate < 0 {
		return errors.Newf("client.rate must not be negative, got %v", c.Client.Rate)
	}
	return nil
}
