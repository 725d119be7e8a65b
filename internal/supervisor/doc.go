// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package supervisor runs Animescope's long-lived services under suture v4.

The tree has three layers so a crash loop in one does not take down the
others:

	RootSupervisor ("animescope")
	├── DataSupervisor ("data-layer")
	│   ├── SessionJanitor
	│   └── CacheWarmer
	├── MessagingSupervisor ("messaging-layer")
	│   ├── websocket Hub
	│   └── list Sweeper
	└── APISupervisor ("api-layer")
	    └── HTTPService

Failed services are restarted with backoff once FailureThreshold is exceeded.
Supervisor events are logged through sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddDataService(auth.NewSessionJanitor(store, time.Minute))
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

On shutdown, UnstoppedServiceReport lists services that ignored
cancellation past ShutdownTimeout.
*/
package supervisor
