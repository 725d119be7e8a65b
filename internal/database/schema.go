// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema statements run at startup.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// DuckDB has no ON DELETE CASCADE; DeleteUser removes favorites first.
func tableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS users_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('users_id_seq'),
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE SEQUENCE IF NOT EXISTS favorites_seq START 1`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id BIGINT NOT NULL,
			anime_id INTEGER NOT NULL,
			seq BIGINT NOT NULL DEFAULT nextval('favorites_seq'),
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, anime_id)
		)`,

		`CREATE TABLE IF NOT EXISTS anime_cache (
			anime_id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			image_url TEXT,
			score DOUBLE,
			episodes INTEGER,
			year INTEGER,
			status TEXT NOT NULL DEFAULT 'unknown',
			synopsis TEXT,
			members INTEGER,
			genres TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL
		)`,
	}
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
