// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
)

// DuckDBStore implements Store on the application database.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a store on db. Call CreateTable once before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

const eventColumns = `id, timestamp, type, severity, outcome,
	actor_id, actor_type, actor_name, actor_role, actor_session_id,
	target_id, target_type, target_name,
	source_ip, source_user_agent,
	action, description, metadata, request_id`

// CreateTable creates the audit_events table and its indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_name TEXT,
			actor_role TEXT,
			actor_session_id TEXT,
			target_id TEXT,
			target_type TEXT,
			target_name TEXT,
			source_ip TEXT NOT NULL,
			source_user_agent TEXT,
			action TEXT NOT NULL,
			description TEXT NOT NULL,
			metadata TEXT,
			request_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_events(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_target_id ON audit_events(target_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit schema: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

// Save implements Store.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "audit_events", time.Since(start), err) }()

	if event == nil {
		return errors.New("event cannot be nil")
	}
	var targetID, targetType, targetName sql.NullString
	if t := event.Target; t != nil {
		targetID = sql.NullString{String: t.ID, Valid: true}
		targetType = sql.NullString{String: t.Type, Valid: true}
		targetName = nullString(t.Name)
	}
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		metadata = sql.NullString{String: string(event.Metadata), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC(), string(event.Type), string(event.Severity), string(event.Outcome),
		event.Actor.ID, event.Actor.Type, nullString(event.Actor.Name), nullString(event.Actor.Role),
		nullString(event.Actor.SessionID),
		targetID, targetType, targetName,
		event.Source.IPAddress, nullString(event.Source.UserAgent),
		event.Action, event.Description, metadata, nullString(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Query implements Store.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) (events []Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "audit_events", time.Since(start), err) }()

	filter = filter.normalized()
	where, args := buildConditions(&filter)
	query := `SELECT ` + eventColumns + ` FROM audit_events` + where +
		` ORDER BY timestamp DESC, id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events = make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count", "audit_events", time.Since(start), err) }()

	where, args := buildConditions(&filter)
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// Delete implements Store.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete", "audit_events", time.Since(start), err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return res.RowsAffected()
}

// buildConditions turns a filter into a WHERE clause with placeholders.
func buildConditions(f *QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if len(f.Types) > 0 {
		ph := make([]string, len(f.Types))
		for i, t := range f.Types {
			ph[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(ph, ",")+")")
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, f.TargetID)
	}
	if f.StartTime != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.StartTime.UTC())
	}
	if f.EndTime != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.EndTime.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		e                                  Event
		typ, severity, outcome             string
		actorName, actorRole, actorSession sql.NullString
		targetID, targetType, targetName   sql.NullString
		userAgent, metadata, requestID     sql.NullString
	)
	err := rows.Scan(&e.ID, &e.Timestamp, &typ, &severity, &outcome,
		&e.Actor.ID, &e.Actor.Type, &actorName, &actorRole, &actorSession,
		&targetID, &targetType, &targetName,
		&e.Source.IPAddress, &userAgent,
		&e.Action, &e.Description, &metadata, &requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	e.Type, e.Severity, e.Outcome = EventType(typ), Severity(severity), Outcome(outcome)
	e.Actor.Name, e.Actor.Role, e.Actor.SessionID = actorName.String, actorRole.String, actorSession.String
	if targetID.Valid {
		e.Target = &Target{ID: targetID.String, Type: targetType.String, Name: targetName.String}
	}
	e.Source.UserAgent = userAgent.String
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	e.RequestID = requestID.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
