// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/animescope/config.yaml",
	"/etc/animescope/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Jikan: JikanConfig{
			BaseURL:            "https://api.jikan.moe/v4",
			Timeout:            15 * time.Second,
			MaxAttempts:        3,
			BackoffBase:        700 * time.Millisecond,
			DetailsBackoffBase: 800 * time.Millisecond,
			RequestsPerSecond:  3, // public API allowance
			Burst:              3,
			BreakerEnabled:     true,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			BreakerInterval:    time.Minute,
		},
		Catalog: CatalogConfig{
			PageSize:              25,
			MinQueryLength:        2,
			DetailChunkSize:       5,
			MaxRetained:           500,
			ScrollThreshold:       5,
			FavoritesResolveDelay: 150 * time.Millisecond,
			ListIdleTTL:           15 * time.Minute,
			MaxListsPerSession:    16,
		},
		Database: DatabaseConfig{
			Path:      "/data/animescope.duckdb",
			MaxMemory: "512MB",
		},
		Security: SecurityConfig{
			SessionStore:      "memory",
			SessionStorePath:  "/data/sessions",
			SessionTTL:        24 * time.Hour,
			CookieSecure:      false,
			MinPasswordLength: 6,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   90,
			CleanupInterval: 24 * time.Hour,
			BufferSize:      1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the config file, then the environment.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"jikan_base_url":             "jikan.base_url",
	"jikan_timeout":              "jikan.timeout",
	"jikan_max_attempts":         "jikan.max_attempts",
	"jikan_backoff_base":         "jikan.backoff_base",
	"jikan_details_backoff_base": "jikan.details_backoff_base",
	"jikan_requests_per_second":  "jikan.requests_per_second",
	"jikan_burst":                "jikan.burst",
	"jikan_breaker_enabled":      "jikan.breaker_enabled",
	"jikan_breaker_max_failures": "jikan.breaker_max_failures",
	"jikan_breaker_timeout":      "jikan.breaker_timeout",
	"jikan_breaker_interval":     "jikan.breaker_interval",

	"catalog_page_size":               "catalog.page_size",
	"catalog_min_query_length":        "catalog.min_query_length",
	"catalog_detail_chunk_size":       "catalog.detail_chunk_size",
	"catalog_max_retained":            "catalog.max_retained",
	"catalog_scroll_threshold":        "catalog.scroll_threshold",
	"catalog_favorites_resolve_delay": "catalog.favorites_resolve_delay",
	"catalog_list_idle_ttl":           "catalog.list_idle_ttl",
	"catalog_max_lists_per_session":   "catalog.max_lists_per_session",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"session_store":       "security.session_store",
	"session_store_path":  "security.session_store_path",
	"session_ttl":         "security.session_ttl",
	"cookie_secure":       "security.cookie_secure",
	"jwt_secret":          "security.jwt_secret",
	"min_password_length": "security.min_password_length",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"audit_enabled":          "audit.enabled",
	"audit_retention_days":   "audit.retention_days",
	"audit_cleanup_interval": "audit.cleanup_interval",
	"audit_buffer_size":      "audit.buffer_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps JIKAN_MAX_ATTEMPTS to jikan.max_attempts and so on.
// An empty return value tells koanf to skip the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
