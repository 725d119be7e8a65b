// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package websocket streams server-side lists to remote renderers.

A Client is bound to one catalog.List for the lifetime of its connection.
It implements paginate.Renderer, so every batch the list's engine appends
and every prune it performs is pushed to the peer as it happens. The peer
drives the list by sending viewport updates and explicit load requests,
and may toggle favorites through the session's overlay.

Key Components:

  - Hub: tracks open connections and closes them on shutdown or when
    their list is deleted. It runs as a suture service.
  - Client: one connection with separate read and write goroutines.
  - Message: the JSON envelope used in both directions.

Server messages:

  - batch: items appended to the list, with favorite flags
  - prune: number of items removed from the front
  - state: engine state, cursor and retained range after an operation
  - favorite: a favorite flag changed for this session
  - error: an operation failed ({code, message})

Client messages:

  - viewport: {"first": n, "last": m}, may trigger a load near the end
  - load_more: explicit LoadNext
  - toggle: {"anime_id": id}
  - ping: answered with pong

Connection Lifecycle:

 1. The API handler upgrades the request and creates a Client for a list
    the caller owns.
 2. The hub registers the client, which attaches itself as the list's
    renderer and subscribes to overlay changes.
 3. Operations sent by the peer run one at a time in the read goroutine.
 4. On disconnect the renderer is detached and the subscription dropped.
    The list itself stays open until deleted or swept.

Timing:

  - writeWait: 10 seconds per write
  - pongWait: 60 seconds without a pong closes the connection
  - pingPeriod: 54 seconds
  - maxMessageSize: 64 KB inbound
*/
package websocket
