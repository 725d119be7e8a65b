// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/models"
)

// CacheStore is the local anime metadata cache, read when the upstream
// cannot answer.
type CacheStore struct {
	db *DB
}

const cacheColumns = `anime_id, title, image_url, score, episodes, year, status, synopsis, members, genres, updated_at`

// Get returns the cached record for id or ErrNotFound.
func (s *CacheStore) Get(ctx context.Context, id int) (rec *models.CacheRecord, err error) {
	start := time.Now()
	defer func() { observe("select", "anime_cache", start, err) }()

	row := s.db.conn.QueryRowContext(ctx, `SELECT `+cacheColumns+` FROM anime_cache WHERE anime_id = ?`, id)
	return scanCacheRecord(row)
}

// Upsert inserts or refreshes rec and stamps UpdatedAt.
func (s *CacheStore) Upsert(ctx context.Context, rec *models.CacheRecord) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "anime_cache", start, err) }()

	if rec.ID <= 0 {
		return ErrInvalidAnimeID
	}
	status := rec.Status
	if status == "" {
		status = models.StatusUnknown
	}
	genres := rec.Genres
	if genres == nil {
		genres = []models.Genre{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO anime_cache (`+cacheColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (anime_id) DO UPDATE SET
			title = excluded.title,
			image_url = excluded.image_url,
			score = excluded.score,
			episodes = excluded.episodes,
			year = excluded.year,
			status = excluded.status,
			synopsis = excluded.synopsis,
			members = excluded.members,
			genres = excluded.genres,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Title, nullString(rec.ImageURL), nullFloat(rec.Score), nullInt(rec.Episodes),
		nullInt(rec.Year), string(status), nullString(rec.Synopsis), nullInt(rec.Members),
		string(genresJSON), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert anime cache: %w", err)
	}
	return nil
}

// List returns cached records, most recently updated first.
func (s *CacheStore) List(ctx context.Context, limit, offset int) (recs []models.CacheRecord, total int, err error) {
	start := time.Now()
	defer func() { observe("select", "anime_cache", start, err) }()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if err = s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime_cache`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count anime cache: %w", err)
	}

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+cacheColumns+` FROM anime_cache ORDER BY updated_at DESC, anime_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list anime cache: %w", err)
	}
	defer rows.Close()

	recs = make([]models.CacheRecord, 0)
	for rows.Next() {
		rec, err := scanCacheRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating anime cache: %w", err)
	}
	return recs, total, nil
}

// Delete removes one cached record.
func (s *CacheStore) Delete(ctx context.Context, id int) (err error) {
	start := time.Now()
	defer func() { observe("delete", "anime_cache", start, err) }()

	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM anime_cache WHERE anime_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete anime cache entry: %w", err)
	}
	return requireAffected(res)
}

func scanCacheRecord(row rowScanner) (*models.CacheRecord, error) {
	var (
		rec      models.CacheRecord
		image    sql.NullString
		score    sql.NullFloat64
		episodes sql.NullInt64
		year     sql.NullInt64
		status   string
		synopsis sql.NullString
		members  sql.NullInt64
		genres   string
	)
	err := row.Scan(&rec.ID, &rec.Title, &image, &score, &episodes, &year, &status, &synopsis, &members, &genres, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan anime cache: %w", err)
	}

	rec.ImageURL = fromNullString(image)
	rec.Synopsis = fromNullString(synopsis)
	if score.Valid {
		rec.Score = &score.Float64
	}
	rec.Episodes = fromNullInt(episodes)
	rec.Year = fromNullInt(year)
	rec.Members = fromNullInt(members)
	rec.Status = models.ParseStatus(status)
	if genres != "" {
		if err := json.Unmarshal([]byte(genres), &rec.Genres); err != nil {
			rec.Genres = nil
		}
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func fromNullInt(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}
