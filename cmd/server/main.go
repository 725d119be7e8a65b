// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/animescope/internal/api"
	"github.com/tomtom215/animescope/internal/audit"
	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/authz"
	"github.com/tomtom215/animescope/internal/catalog"
	"github.com/tomtom215/animescope/internal/config"
	"github.com/tomtom215/animescope/internal/database"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/supervisor"
	"github.com/tomtom215/animescope/internal/supervisor/services"
	ws "github.com/tomtom215/animescope/internal/websocket"
)

// warmerQueueSize bounds pending cache upserts.
const warmerQueueSize = 256

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("jikan_url", cfg.Jikan.BaseURL).
		Str("session_store", cfg.Security.SessionStore).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Animescope with supervisor tree")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Catalog: upstream client, read-through service and list registry.
	upstream := jikan.NewFromConfig(&cfg.Jikan)
	svc := catalog.NewService(upstream, db.Cache(), cfg.Catalog)
	warmer := catalog.NewCacheWarmer(upstream, db.Cache(), warmerQueueSize)
	lists := catalog.NewRegistry(svc, api.FavoritesCollaborator(db.Favorites(), warmer))

	wsHub := ws.NewHub()
	lists.OnClose(func(id string) { wsHub.CloseList(id) })

	// Audit trail. A nil logger records nothing.
	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditStore := audit.NewDuckDBStore(db.Conn())
		if err := auditStore.CreateTable(ctx); err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize audit store")
		}
		auditLog = audit.NewLogger(auditStore, &audit.Config{
			RetentionDays:   cfg.Audit.RetentionDays,
			CleanupInterval: cfg.Audit.CleanupInterval,
			BufferSize:      cfg.Audit.BufferSize,
		})
		defer func() { _ = auditLog.Close() }()
		logging.Info().Int("retention_days", cfg.Audit.RetentionDays).Msg("Audit logging enabled")
	}

	// Sessions
	store, storeCloser, err := auth.NewSessionStore(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := storeCloser.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	if cfg.Security.SessionStore == auth.StoreMemory && cfg.IsProduction() {
		logging.Warn().Msg("Session store is 'memory': sessions are lost on restart (set SESSION_STORE=badger)")
	}

	if cfg.Security.JWTSecret == "" {
		logging.Warn().Msg("JWT_SECRET not set: bearer tokens will not survive a restart")
	}
	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	sessCfg := auth.DefaultSessionMiddlewareConfig()
	sessCfg.SessionTTL = cfg.Security.SessionTTL
	sessCfg.CookieSecure = cfg.Security.CookieSecure
	sessions := auth.NewSessionMiddleware(store, api.UserLoader(db.Users()), jwtManager, sessCfg)

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set specific origins in production")
	}

	handler := api.NewHandler(api.Dependencies{
		DB:       db,
		Catalog:  svc,
		Lists:    lists,
		Warmer:   warmer,
		Upstream: upstream,
		Hub:      wsHub,
		Sessions: sessions,
		Config:   cfg,
		Audit:    auditLog,
	})
	router := api.NewRouter(handler, sessions,
		authz.NewMiddleware(enforcer, api.AuthzDenied),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddDataService(auth.NewSessionJanitor(store, 0))
	tree.AddDataService(warmer)
	if auditLog != nil {
		tree.AddDataService(auditLog)
	}

	tree.AddMessagingService(wsHub)
	tree.AddMessagingService(catalog.NewSweeper(lists))
	logging.Info().Msg("WebSocket hub and list sweeper added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	lists.CloseAll()
	logging.Info().Msg("Application stopped gracefully")
}
