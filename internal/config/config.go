// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package config loads server configuration from an optional YAML file and
// command-line flags. Flag values take precedence over file values, and flag
// defaults fill in whatever neither source sets.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the serve command configuration.
type Config struct {
	ListenAddr    string        `koanf:"listen_addr"`
	MetricsAddr   string        `koanf:"metrics_addr"`
	DatabaseURL   string        `koanf:"database_url"`
	QueryTimeout  time.Duration `koanf:"query_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	MaxIDRedraws  int           `koanf:"max_id_redraws"`
	LogFormat     string        `koanf:"log_format"`
}

// RegisterFlags defines the configuration flags with their defaults.
// Flag names double as koanf keys, so posflag merges them directly.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("listen_addr", "127.0.0.1:8080", "HTTP API listen address")
	flags.String("metrics_addr", "127.0.0.1:9100", "metrics and health probe listen address")
	flags.String("database_url", "", "PostgreSQL connection URL")
	flags.Duration("query_timeout", 5*time.Second, "per-query database timeout")
	flags.Duration("sweep_interval", 5*time.Minute, "interval between expired session sweeps")
	flags.Int("max_id_redraws", 32, "attempts before giving up on identifier collisions")
	flags.String("log_format", "json", "log output format (json or text)")
}

// Load builds a Config from the YAML file at path (skipped when path is empty
// or the file does not exist) overlaid with any flags the user set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return nil, oops.Code("CONFIG_FILE_UNREADABLE").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.MetricsAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.QueryTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("query_timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("sweep_interval must be positive")
	}
	if c.MaxIDRedraws <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("max_id_redraws must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	return nil
}
