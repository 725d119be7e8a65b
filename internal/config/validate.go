// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour

	minJWTSecretLength = 32
)

var (
	validLogLevels = map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	validLogFormats = map[string]bool{
		"json": true, "console": true,
	}
	validEnvironments = map[string]bool{
		"development": true, "staging": true, "production": true,
	}
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateJikan,
		c.validateCatalog,
		c.validateDatabase,
		c.validateSecurity,
		c.validateAudit,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

func (c *Config) validateJikan() error {
	if err := validateHTTPURL(c.Jikan.BaseURL, "JIKAN_BASE_URL"); err != nil {
		return err
	}
	if c.Jikan.MaxAttempts < 1 || c.Jikan.MaxAttempts > 10 {
		return fmt.Errorf("JIKAN_MAX_ATTEMPTS must be between 1 and 10")
	}
	if c.Jikan.BackoffBase < 0 || c.Jikan.DetailsBackoffBase < 0 {
		return fmt.Errorf("JIKAN_BACKOFF_BASE must not be negative")
	}
	if c.Jikan.RequestsPerSecond < 0 {
		return fmt.Errorf("JIKAN_REQUESTS_PER_SECOND must not be negative")
	}
	if c.Jikan.RequestsPerSecond > 0 && c.Jikan.Burst < 1 {
		return fmt.Errorf("JIKAN_BURST must be at least 1 when throttling is enabled")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	cat := c.Catalog
	switch {
	case cat.PageSize < 1 || cat.PageSize > 25:
		// Jikan caps limit at 25 per page.
		return fmt.Errorf("CATALOG_PAGE_SIZE must be between 1 and 25")
	case cat.DetailChunkSize < 1:
		return fmt.Errorf("CATALOG_DETAIL_CHUNK_SIZE must be positive")
	case cat.MaxRetained < cat.PageSize:
		return fmt.Errorf("CATALOG_MAX_RETAINED must be at least CATALOG_PAGE_SIZE")
	case cat.ScrollThreshold < 0:
		return fmt.Errorf("CATALOG_SCROLL_THRESHOLD must not be negative")
	case cat.MinQueryLength < 0:
		return fmt.Errorf("CATALOG_MIN_QUERY_LENGTH must not be negative")
	case cat.MaxListsPerSession < 1:
		return fmt.Errorf("CATALOG_MAX_LISTS_PER_SESSION must be positive")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must not be negative")
	}
	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	switch s.SessionStore {
	case "memory":
	case "badger":
		if s.SessionStorePath == "" {
			return fmt.Errorf("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or badger")
	}
	if s.SessionTTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m")
	}
	if s.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be positive")
	}
	if s.JWTSecret != "" && len(s.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.IsProduction() {
		if s.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.ShouldWarnAboutCORS() {
			return fmt.Errorf("CORS_ORIGINS=* is not allowed in production; list the allowed origins")
		}
	}
	if s.RateLimitDisabled {
		return nil
	}
	if s.RateLimitReqs < minRateLimitRequests || s.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if s.RateLimitWindow < minRateLimitWindow || s.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL accepts an http(s) URL with a host. A path is allowed
// because the upstream base URL carries its API version (/v4).
func validateHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", field)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", field)
	}
	return nil
}
