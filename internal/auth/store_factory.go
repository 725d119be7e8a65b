// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewSessionStore builds the configured backend. The returned closer
// releases the backend's resources.
func NewSessionStore(cfg *config.SecurityConfig) (SessionStore, io.Closer, error) {
	switch cfg.SessionStore {
	case StoreBadger:
		s, err := OpenBadgerSessionStore(cfg.SessionStorePath)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("path", cfg.SessionStorePath).Msg("Using persistent session store")
		return s, s, nil
	case StoreMemory, "":
		return NewMemorySessionStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// SessionJanitor removes expired sessions on an interval. It implements
// suture.Service.
type SessionJanitor struct {
	store    SessionStore
	interval time.Duration
}

// NewSessionJanitor creates a janitor. interval defaults to 10 minutes.
func NewSessionJanitor(store SessionStore, interval time.Duration) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{store: store, interval: interval}
}

// Serve runs until ctx is done.
func (j *SessionJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce removes expired sessions and refreshes the session gauge.
func (j *SessionJanitor) RunOnce(ctx context.Context) {
	n, err := j.store.CleanupExpired(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Session cleanup failed")
		return
	}
	if n > 0 {
		logging.Debug().Int("removed", n).Msg("Expired sessions removed")
	}
	if total, err := j.store.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(total))
	}
}

// String names the service in supervisor logs.
func (j *SessionJanitor) String() string { return "session-janitor" }
