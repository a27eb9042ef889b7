// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_MissingFileWritesDefaults verifies the first run creates a default
// config file at the requested path.
func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if cfg.Server != "https://matrix.org" || cfg.LogLevel != "info" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
}

// TestLoad_RoundTrip verifies saved values survive a reload.
func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	cfg.Server = "https://example.org"
	cfg.Username = "tester"
	cfg.CacheDir = "/tmp/chime-cache"
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Server != "https://example.org" || reloaded.Username != "tester" {
		t.Fatalf("reloaded = %+v", reloaded)
	}
	if reloaded.MediaCacheDir() != "/tmp/chime-cache" {
		t.Fatalf("cache dir = %q", reloaded.MediaCacheDir())
	}
}

// TestLoad_Invalid verifies malformed YAML surfaces an error.
func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed config should fail to load")
	}
}
