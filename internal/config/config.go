// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package config loads Animescope configuration from layered sources.
//
// Precedence (lowest to highest): built-in defaults, an optional YAML file
// (CONFIG_PATH or one of DefaultConfigPaths), then environment variables.
// Only environment variables listed in the mapping table are honored.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Jikan    JikanConfig    `koanf:"jikan"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// JikanConfig configures the upstream metadata client.
type JikanConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts counts the first try. 3 means one request plus two retries.
	MaxAttempts int `koanf:"max_attempts"`

	// BackoffBase is multiplied by the attempt number before each retry.
	BackoffBase time.Duration `koanf:"backoff_base"`

	// DetailsBackoffBase applies to single-item lookups, which are more
	// likely to hit the public rate limit during favorites resolution.
	DetailsBackoffBase time.Duration `koanf:"details_backoff_base"`

	// RequestsPerSecond throttles outgoing calls. 0 disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	BreakerEnabled     bool          `koanf:"breaker_enabled"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
}

// CatalogConfig holds list and paging behavior.
type CatalogConfig struct {
	PageSize       int `koanf:"page_size"`
	MinQueryLength int `koanf:"min_query_length"`

	// DetailChunkSize is the chunk used by character and recommendation lists.
	DetailChunkSize int `koanf:"detail_chunk_size"`

	MaxRetained int `koanf:"max_retained"`
	// ScrollThreshold of zero selects the engine default of 5.
	ScrollThreshold int `koanf:"scroll_threshold"`

	// FavoritesResolveDelay spaces out the per-favorite upstream lookups.
	FavoritesResolveDelay time.Duration `koanf:"favorites_resolve_delay"`

	ListIdleTTL        time.Duration `koanf:"list_idle_ttl"`
	MaxListsPerSession int           `koanf:"max_lists_per_session"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 lets DuckDB decide
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	// SessionStore is "memory" or "badger".
	SessionStore     string        `koanf:"session_store"`
	SessionStorePath string        `koanf:"session_store_path"`
	SessionTTL       time.Duration `koanf:"session_ttl"`
	CookieSecure     bool          `koanf:"cookie_secure"`

	// JWTSecret signs bearer tokens handed to non-browser clients.
	JWTSecret string `koanf:"jwt_secret"`

	MinPasswordLength int `koanf:"min_password_length"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// AuditConfig controls the account audit trail.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	RetentionDays   int           `koanf:"retention_days"` // 0 keeps events forever
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	BufferSize      int           `koanf:"buffer_size"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ShouldWarnAboutCORS is true when any origin may call the API with credentials.
func (c *Config) ShouldWarnAboutCORS() bool {
	for _, o := range c.Security.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Load reads configuration from defaults, file and environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
