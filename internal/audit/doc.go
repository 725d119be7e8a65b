// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

/*
Package audit records security-relevant account events: registrations,
logins and failed login attempts, logouts, role changes, account deletion
and anime cache administration.

Events are written asynchronously through a buffered Logger into a Store.
DuckDBStore keeps them in the audit_events table next to the rest of the
application data; MemoryStore is used in tests and development.

# Usage

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return err
	}
	logger := audit.NewLogger(store, audit.DefaultConfig())
	defer logger.Close()
	tree.AddDataService(logger) // retention cleanup

	logger.LogLogin(r, user, sessionID)

A nil *Logger ignores every call, so handlers do not need to check whether
auditing is configured.

# Retention

Serve deletes events older than Config.RetentionDays once per
Config.CleanupInterval. Logger implements suture.Service for this.
*/
package audit
