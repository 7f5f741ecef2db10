// Package config loads boss configuration from defaults, an optional
// devolve.toml file, DEVOLVE_* environment variables, and finally CLI
// flags (via functional Options), in that order of increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/amberarrow/devolve/devolvelog"
)

// Config is the validated, effective configuration for a boss.Pool.
type Config struct {
	Port          int
	QueueSize     int
	AcceptTimeout time.Duration
	ShutdownGrace time.Duration
	AdminAddr     string
	LogLevel      string
}

const (
	minPort      = 1024
	maxPort      = 65535
	minQueueSize = 1
	maxQueueSize = 1_000_000_000

	// DefaultPort is the TCP port the listener binds absent any override.
	DefaultPort = 11111
	// DefaultQueueSize is the bounded queue capacity absent any override.
	DefaultQueueSize = 5000
	// DefaultAcceptTimeout bounds how long the listener waits for a
	// connection before re-checking for shutdown.
	DefaultAcceptTimeout = 30 * time.Second
	// DefaultShutdownGrace is how long a proxy waits for its worker to
	// flush and close after sending QUIT.
	DefaultShutdownGrace = time.Second
	// DefaultAdminAddr is the bind address for the optional health/metrics
	// HTTP surface. Empty disables it.
	DefaultAdminAddr = ":9090"
)

// Option mutates a Config after defaults and file/env loading have been
// applied, letting CLI flags take final precedence over file and
// environment values.
type Option func(*Config)

func WithPort(port int) Option         { return func(c *Config) { c.Port = port } }
func WithQueueSize(size int) Option    { return func(c *Config) { c.QueueSize = size } }
func WithAdminAddr(addr string) Option { return func(c *Config) { c.AdminAddr = addr } }

func WithAcceptTimeout(d time.Duration) Option {
	return func(c *Config) { c.AcceptTimeout = d }
}

func WithShutdownGrace(d time.Duration) Option {
	return func(c *Config) { c.ShutdownGrace = d }
}

// Load resolves defaults, an optional devolve.toml in the current
// directory, DEVOLVE_* environment overrides, then the supplied Options, and
// validates the §3 bounds before returning.
func Load(opts ...Option) (*Config, error) {
	return load("", opts...)
}

// LoadFile is Load, but reads the TOML file at path instead of searching
// the current directory for devolve.toml. A missing file at an explicitly
// requested path is an error, unlike the search-path case in Load.
func LoadFile(path string, opts ...Option) (*Config, error) {
	return load(path, opts...)
}

func load(explicitFile string, opts ...Option) (*Config, error) {
	v := viper.New()
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName("devolve")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("DEVOLVE")
	v.AutomaticEnv()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("queue_size", DefaultQueueSize)
	v.SetDefault("accept_timeout_seconds", int(DefaultAcceptTimeout.Seconds()))
	v.SetDefault("shutdown_grace_seconds", DefaultShutdownGrace.Seconds())
	v.SetDefault("admin_addr", DefaultAdminAddr)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || explicitFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Port:          v.GetInt("port"),
		QueueSize:     v.GetInt("queue_size"),
		AcceptTimeout: time.Duration(v.GetInt("accept_timeout_seconds")) * time.Second,
		ShutdownGrace: time.Duration(v.GetFloat64("shutdown_grace_seconds") * float64(time.Second)),
		AdminAddr:     v.GetString("admin_addr"),
		LogLevel:      v.GetString("log_level"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	devolvelog.Info("configuration loaded: port=%d queue_size=%d accept_timeout=%v shutdown_grace=%v admin_addr=%q",
		cfg.Port, cfg.QueueSize, cfg.AcceptTimeout, cfg.ShutdownGrace, cfg.AdminAddr)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("config: port %d out of range [%d, %d]", c.Port, minPort, maxPort)
	}
	if c.QueueSize < minQueueSize || c.QueueSize > maxQueueSize {
		return fmt.Errorf("config: queue_size %d out of range [%d, %d]", c.QueueSize, minQueueSize, maxQueueSize)
	}
	return nil
}
