// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package main is the entry point for the Animescope server.

Animescope browses the Jikan (MyAnimeList) anime catalog through endless,
server-side paginated lists and keeps per-account favorites in DuckDB.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("animescope")
	├── DataSupervisor ("data-layer")
	│   ├── Session janitor (expired session cleanup)
	│   ├── Cache warmer (queued anime cache upserts)
	│   └── Audit logger (retention cleanup)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (list streams)
	│   └── List sweeper (idle list expiry)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB with users, favorites and the anime cache
 4. Catalog: Jikan client (rate limit, retry, circuit breaker), service, list registry
 5. Audit: audit_events table and the buffered audit logger
 6. Sessions: memory or BadgerDB store, JWT bearer tokens, cookies
 7. Authorization: Casbin role policy
 8. Supervisor Tree and HTTP Server

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=3000
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	DUCKDB_PATH=/data/animescope.duckdb
	JIKAN_BASE_URL=https://api.jikan.moe/v4
	SESSION_STORE=memory         # memory or badger
	JWT_SECRET=<32+ chars>       # random per process when unset
	CORS_ORIGINS=https://app.example.com
	AUDIT_ENABLED=true
	AUDIT_RETENTION_DAYS=90

The first account registered becomes an admin.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (10s timeout)
 3. Closes WebSocket streams and open lists
 4. Closes the session store and database
 5. Reports any services that failed to stop
*/
package main
