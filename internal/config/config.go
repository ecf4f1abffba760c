// Package config loads and validates the Kansas TOML configuration file.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddress  = "127.0.0.1:9799"
	defaultHealthTimeout  = 500 * time.Millisecond
	defaultHealthInterval = 5 * time.Second
	defaultHealthPath     = "/"
	defaultMaxPeekBytes   = 1 << 20 // 1 MiB
)

// FileConfig is the raw shape of the TOML configuration file.
type FileConfig struct {
	ListenAddress string        `toml:"listen_address"`
	Backend       BackendConfig `toml:"backend"`
	Log           LogConfig     `toml:"log"`
}

// BackendConfig is the `[backend]` table.
type BackendConfig struct {
	Addresses    []string           `toml:"addresses"`
	Client       ClientConfig       `toml:"client"`
	HealthConfig HealthConfigFile   `toml:"health_config"`
}

// ClientConfig is the `[backend.client]` table.
type ClientConfig struct {
	PoolIdleTimeout     string `toml:"pool_idle_timeout"`
	PoolMaxIdlePerHost  int    `toml:"pool_max_idle_per_host"`
	MaxPeekBytes        int64  `toml:"max_peek_bytes"`
}

// HealthConfigFile is the `[backend.health_config]` table.
type HealthConfigFile struct {
	Timeout  string `toml:"timeout"`
	Interval string `toml:"interval"`
	Path     string `toml:"path"`
}

// LogConfig is the `[log]` table.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// HealthConfig is the validated, duration-typed form of HealthConfigFile.
type HealthConfig struct {
	Timeout  time.Duration
	Interval time.Duration
	Path     string
}

// Config is the fully validated, duration-typed configuration ready to seed
// a pool snapshot.
type Config struct {
	ListenAddress       string
	Addresses           []string
	PoolIdleTimeout      time.Duration
	PoolMaxIdlePerHost   int
	MaxPeekBytes         int64
	HealthConfig         HealthConfig
	Log                  LogConfig
}

// Load reads the TOML file at path, validates it, and returns a Config.
func Load(path string) (*Config, error) {
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return fromFile(path, fc)
}

// Parse parses TOML bytes directly; used by tests that don't want a file on
// disk.
func Parse(data []byte) (*Config, error) {
	var fc FileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return fromFile("<memory>", fc)
}

func fromFile(path string, fc FileConfig) (*Config, error) {
	listenAddress := fc.ListenAddress
	if listenAddress == "" {
		listenAddress = defaultListenAddress
	}
	if _, _, err := net.SplitHostPort(listenAddress); err != nil {
		return nil, fmt.Errorf("config %s: invalid listen_address %q: %w", path, listenAddress, err)
	}

	if len(fc.Backend.Addresses) == 0 {
		return nil, fmt.Errorf("config %s: backend.addresses must contain at least one address", path)
	}
	seen := make(map[string]bool, len(fc.Backend.Addresses))
	for _, addr := range fc.Backend.Addresses {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("config %s: invalid backend address %q: %w", path, addr, err)
		}
		if seen[addr] {
			return nil, fmt.Errorf("config %s: duplicate backend address %q", path, addr)
		}
		seen[addr] = true
	}

	poolIdleTimeout := 90 * time.Second
	if fc.Backend.Client.PoolIdleTimeout != "" {
		d, err := time.ParseDuration(fc.Backend.Client.PoolIdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("config %s: invalid backend.client.pool_idle_timeout %q: %w", path, fc.Backend.Client.PoolIdleTimeout, err)
		}
		poolIdleTimeout = d
	}

	poolMaxIdlePerHost := 32
	if fc.Backend.Client.PoolMaxIdlePerHost != 0 {
		poolMaxIdlePerHost = fc.Backend.Client.PoolMaxIdlePerHost
	}

	maxPeekBytes := int64(defaultMaxPeekBytes)
	if fc.Backend.Client.MaxPeekBytes != 0 {
		maxPeekBytes = fc.Backend.Client.MaxPeekBytes
	}
	if maxPeekBytes <= 0 {
		return nil, fmt.Errorf("config %s: backend.client.max_peek_bytes must be positive", path)
	}

	healthTimeout := defaultHealthTimeout
	if fc.Backend.HealthConfig.Timeout != "" {
		d, err := time.ParseDuration(fc.Backend.HealthConfig.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config %s: invalid backend.health_config.timeout %q: %w", path, fc.Backend.HealthConfig.Timeout, err)
		}
		healthTimeout = d
	}

	healthInterval := defaultHealthInterval
	if fc.Backend.HealthConfig.Interval != "" {
		d, err := time.ParseDuration(fc.Backend.HealthConfig.Interval)
		if err != nil {
			return nil, fmt.Errorf("config %s: invalid backend.health_config.interval %q: %w", path, fc.Backend.HealthConfig.Interval, err)
		}
		healthInterval = d
	}

	healthPath := defaultHealthPath
	if fc.Backend.HealthConfig.Path != "" {
		healthPath = fc.Backend.HealthConfig.Path
	}

	logCfg := fc.Log
	if logCfg.Level == "" {
		logCfg.Level = "info"
	}
	if logCfg.Format == "" {
		logCfg.Format = "json"
	}
	if logCfg.Output == "" {
		logCfg.Output = "stdout"
	}
	if err := validateLogConfig(logCfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &Config{
		ListenAddress:      listenAddress,
		Addresses:          fc.Backend.Addresses,
		PoolIdleTimeout:    poolIdleTimeout,
		PoolMaxIdlePerHost: poolMaxIdlePerHost,
		MaxPeekBytes:       maxPeekBytes,
		HealthConfig: HealthConfig{
			Timeout:  healthTimeout,
			Interval: healthInterval,
			Path:     healthPath,
		},
		Log: logCfg,
	}, nil
}

func validateLogConfig(l LogConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s", l.Format)
	}
	return nil
}
