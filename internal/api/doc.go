// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package api provides the HTTP interface of Animescope on the Chi router.

Every JSON endpoint answers with models.APIResponse:

	{"success": true, "data": ..., "meta": {"timestamp": "..."}}
	{"success": false, "data": null, "error": {"code": "...", "message": "...", "request_id": "..."}, "meta": {...}}

Endpoint groups:

  - /api/v1/health: liveness, readiness and status
  - /api/v1/auth: register, login, logout, current user
  - /api/v1/catalog: browse and search, genres, details with cache
    fallback, characters and recommendations in chunks
  - /api/v1/anime-cache/{id}: the locally cached record of a title
  - /api/v1/favorites: the caller's favorite ids and the favorites view
  - /api/v1/lists: server-side paginated lists and their websocket streams
  - /api/v1/admin: accounts, the anime cache, the audit trail and request statistics
  - /metrics: Prometheus metrics

Middleware, outermost first: request id, real IP, panic recovery, CORS,
Prometheus metrics, the performance monitor, session authentication,
security headers, gzip, casbin authorization and per-group rate limits.

Error mapping:

  - favorites.ErrUnauthenticated: 401 UNAUTHORIZED
  - authorization denied while signed in: 403 FORBIDDEN
  - not found in upstream, cache or database: 404 NOT_FOUND
  - invalid ids and bodies: 400 VALIDATION_ERROR
  - duplicate email, toggle in flight: 409 CONFLICT
  - permanent upstream failure: 502 UPSTREAM_ERROR
  - transient upstream failure or open breaker: 503 UPSTREAM_UNAVAILABLE
*/
package api
