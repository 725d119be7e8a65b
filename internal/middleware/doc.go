// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package middleware provides the infrastructure HTTP middleware mounted in
front of the API router.

Key Components:

  - RequestID: accepts or generates X-Request-ID and seeds the logging
    context with request and correlation ids
  - PrometheusMetrics: request counts, durations and in-flight gauge,
    labeled by chi route pattern to keep cardinality bounded
  - Compression: gzip for clients that accept it, skipped for websocket
    upgrades
  - PerformanceMonitor: a sliding window of recent request durations with
    per-route percentiles, served on the admin performance endpoint

All middleware uses the func(http.Handler) http.Handler shape so it can be
passed straight to chi's Use.

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
	r.Use(middleware.Compression)

Route patterns are only known after chi has matched the route, so the
metrics middleware reads the pattern after calling next.
*/
package middleware
