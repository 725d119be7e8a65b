// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package services adapts components with a blocking, non-context lifecycle
to suture's Serve(ctx) error pattern.

Most Animescope background workers (the session janitor, the list sweeper,
the cache warmer and the websocket hub) implement suture.Service directly.
The HTTP server does not: ListenAndServe blocks until Shutdown is called
from elsewhere, so HTTPServerService bridges the two.

	server := &http.Server{Addr: ":8080", Handler: router}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
