// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config loads the client configuration from an XDG-resolved YAML
// file, writing a default file on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "chime/config.yaml"
	cacheDirName   = "chime"
)

// Config is the on-disk client configuration.
type Config struct {
	file string

	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	CacheDir string `yaml:"cache_dir"`
	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Server:   "https://matrix.org",
		LogLevel: "info",
	}
}

// Path returns the default XDG config file location.
func Path() (string, error) {
	path, err := xdg.ConfigFile(configFileName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}

// Load reads the configuration at path. A missing file is created with
// defaults and returned as-is, so a first run works without any setup.
func Load(path string) (*Config, error) {
	cfg := defaults()
	cfg.file = path

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the in-memory configuration back to its file.
func (c *Config) Save() error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.file), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(c.file, b, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MediaCacheDir returns the configured cache directory, defaulting to the
// XDG cache home.
func (c *Config) MediaCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(xdg.CacheHome, cacheDirName)
}
