// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Depot commands.
//
// Configuration is loaded from a single YAML file specified by the
// DEPOT_CONFIG environment variable or a --config flag. There are no
// fallbacks or automatic discovery: a missing path means defaults,
// never a silently-found file somewhere else.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/depot-foundation/depot/lib/pkgstore"
)

// EnvVar names the environment variable checked for a config path.
const EnvVar = "DEPOT_CONFIG"

// Config is the configuration for the depot CLI.
type Config struct {
	// StoreRoot is the package store root directory.
	StoreRoot string `yaml:"store_root"`

	// CacheCapacity bounds the in-process recency cache (entries).
	// Zero means the store default.
	CacheCapacity int `yaml:"cache_capacity"`

	// Compression selects the blob encoding for new puts:
	// "none" (default), "lz4", or "zstd".
	Compression string `yaml:"compression"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		StoreRoot:   filepath.Join(home, ".depot", "store"),
		Compression: "none",
		LogLevel:    "info",
	}
}

// Load reads configuration from path. If path is empty, the
// DEPOT_CONFIG environment variable is consulted; if that is also
// empty, defaults are returned.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values. Called by Load; exported so callers
// constructing a Config programmatically can check it the same way.
func (c *Config) Validate() error {
	if c.StoreRoot == "" {
		return fmt.Errorf("store_root is required")
	}
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be >= 0, got %d", c.CacheCapacity)
	}
	if _, err := pkgstore.ParseCompression(c.Compression); err != nil {
		return err
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel translates LogLevel into a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
