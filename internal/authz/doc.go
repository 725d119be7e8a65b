// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package authz authorizes API requests with Casbin role policies.
//
// The request subject is the account role, or "anonymous" without a
// session. Roles inherit upward:
//
//	anonymous <- user <- admin
//
// Objects are request paths matched with keyMatch2, and the action is
// derived from the HTTP method (read, write, delete). The model and
// policy are embedded (model.conf, policy.csv) and may be replaced by files
// on disk:
//
//	p, anonymous, /api/v1/catalog/*, read
//	p, user, /api/v1/favorites/*, *
//	p, admin, /api/v1/admin/*, *
//
// Request flow:
//
//	Request -> auth.Authenticate -> authz.AuthorizeRequest -> Handler
//
// A denied anonymous request is answered with 401 so clients know to log
// in; a denied signed-in request gets 403.
package authz
