// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points CONFIG_PATH at a missing file and runs from a temp dir so a
// stray config.yaml in the package directory cannot leak into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Jikan.BaseURL != "https://api.jikan.moe/v4" {
		t.Errorf("Jikan.BaseURL = %q", cfg.Jikan.BaseURL)
	}
	if cfg.Jikan.MaxAttempts != 3 {
		t.Errorf("Jikan.MaxAttempts = %d, want 3", cfg.Jikan.MaxAttempts)
	}
	if cfg.Jikan.BackoffBase != 700*time.Millisecond {
		t.Errorf("Jikan.BackoffBase = %v, want 700ms", cfg.Jikan.BackoffBase)
	}
	if cfg.Catalog.PageSize != 25 {
		t.Errorf("Catalog.PageSize = %d, want 25", cfg.Catalog.PageSize)
	}
	if cfg.Catalog.MaxRetained != 500 {
		t.Errorf("Catalog.MaxRetained = %d, want 500", cfg.Catalog.MaxRetained)
	}
	if cfg.Security.MinPasswordLength != 6 {
		t.Errorf("Security.MinPasswordLength = %d, want 6", cfg.Security.MinPasswordLength)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != 90 {
		t.Errorf("Audit = %+v, want enabled with 90 day retention", cfg.Audit)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("JIKAN_MAX_ATTEMPTS", "5")
	t.Setenv("JIKAN_BACKOFF_BASE", "250ms")
	t.Setenv("CATALOG_MAX_RETAINED", "100")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUDIT_ENABLED", "false")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jikan.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Jikan.MaxAttempts)
	}
	if cfg.Jikan.BackoffBase != 250*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 250ms", cfg.Jikan.BackoffBase)
	}
	if cfg.Catalog.MaxRetained != 100 {
		t.Errorf("MaxRetained = %d, want 100", cfg.Catalog.MaxRetained)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != want[0] || cfg.Security.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Audit.Enabled {
		t.Error("AUDIT_ENABLED=false not applied")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  port: 8088\ncatalog:\n  scroll_threshold: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("env should win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Catalog.ScrollThreshold != 3 {
		t.Errorf("ScrollThreshold = %d, want 3 from file", cfg.Catalog.ScrollThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "prod" }, "ENVIRONMENT"},
		{"bad base url", func(c *Config) { c.Jikan.BaseURL = "ftp://x" }, "JIKAN_BASE_URL"},
		{"zero attempts", func(c *Config) { c.Jikan.MaxAttempts = 0 }, "JIKAN_MAX_ATTEMPTS"},
		{"page too large", func(c *Config) { c.Catalog.PageSize = 50 }, "CATALOG_PAGE_SIZE"},
		{"retained below page", func(c *Config) { c.Catalog.MaxRetained = 10 }, "CATALOG_MAX_RETAINED"},
		{"badger without path", func(c *Config) {
			c.Security.SessionStore = "badger"
			c.Security.SessionStorePath = ""
		}, "SESSION_STORE_PATH"},
		{"unknown store", func(c *Config) { c.Security.SessionStore = "redis" }, "SESSION_STORE"},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"production without secret", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://app.example"}
		}, "JWT_SECRET is required"},
		{"production wildcard cors", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.JWTSecret = strings.Repeat("s", 32)
		}, "CORS_ORIGINS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"negative audit retention", func(c *Config) { c.Audit.RetentionDays = -1 }, "AUDIT_RETENTION_DAYS"},
		{"disabled audit skips bounds", func(c *Config) {
			c.Audit.Enabled = false
			c.Audit.BufferSize = -1
		}, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
