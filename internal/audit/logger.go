// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package audit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/animescope/internal/auth"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/middleware"
	"github.com/tomtom215/animescope/internal/models"
)

// Config holds configuration for the audit logger.
type Config struct {
	// RetentionDays is how long events are kept. Zero keeps them forever.
	RetentionDays int

	// CleanupInterval is how often Serve applies the retention.
	CleanupInterval time.Duration

	// BufferSize is the async write queue. Zero writes synchronously.
	BufferSize int
}

// DefaultConfig returns a 90 day retention with a 1000 event buffer.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
	}
}

// Logger records audit events. A nil *Logger drops them.
type Logger struct {
	config *Config
	store  Store

	events    chan *Event
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewLogger creates a logger writing to store. With a buffer, a writer
// goroutine runs until Close.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Logger{config: config, store: store, stop: make(chan struct{})}
	if config.BufferSize > 0 {
		l.events = make(chan *Event, config.BufferSize)
		l.wg.Add(1)
		go l.writer()
	}
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.events:
					l.write(e)
				default:
					return
				}
			}
		case e := <-l.events:
			l.write(e)
		}
	}
}

func (l *Logger) write(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, e); err != nil {
		logging.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to save audit event")
		return
	}
	metrics.AuditEvents.WithLabelValues(string(e.Type), string(e.Outcome)).Inc()
}

// Log records an event, filling in ID and Timestamp when unset.
func (l *Logger) Log(e *Event) {
	if l == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if l.events == nil {
		l.write(e)
		return
	}
	select {
	case l.events <- e:
	default:
		metrics.AuditEventsDropped.Inc()
		logging.Warn().Str("event_id", e.ID).Msg("Audit event buffer full, dropping event")
	}
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		close(l.stop)
		l.wg.Wait()
	})
	return nil
}

// Serve applies the retention period until ctx is done. It implements
// suture.Service.
func (l *Logger) Serve(ctx context.Context) error {
	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Cleanup(ctx)
		}
	}
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) int64 {
	if l.config.RetentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -l.config.RetentionDays)
	n, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
		return 0
	}
	if n > 0 {
		logging.Info().Int64("count", n).Msg("Cleaned up old audit events")
	}
	return n
}

// Query returns matching events, newest first, and the total match count.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, int64, error) {
	events, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// =====================================================
// Request helpers
// =====================================================

// SourceFromRequest reads the client address and agent. RemoteAddr is
// expected to be rewritten by a real-IP middleware already.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}

// ActorFromUser describes an account acting in session sid.
func ActorFromUser(u *models.User, sid string) Actor {
	if u == nil {
		return Actor{ID: "anonymous", Type: "anonymous", SessionID: sid}
	}
	return Actor{
		ID:        strconv.FormatInt(u.ID, 10),
		Type:      "user",
		Name:      u.Email,
		Role:      u.Role,
		SessionID: sid,
	}
}

func actorFromRequest(r *http.Request) Actor {
	ctx := r.Context()
	return ActorFromUser(auth.UserFromContext(ctx), auth.SessionIDFromContext(ctx))
}

func userTarget(u *models.User) *Target {
	return &Target{ID: strconv.FormatInt(u.ID, 10), Type: "user", Name: u.Email}
}

func (l *Logger) logRequest(r *http.Request, e *Event) {
	if l == nil {
		return
	}
	e.Source = SourceFromRequest(r)
	e.RequestID = middleware.GetRequestID(r.Context())
	l.Log(e)
}

// LogLogin records a successful login by u.
func (l *Logger) LogLogin(r *http.Request, u *models.User, sid string) {
	l.logRequest(r, &Event{
		Type:        EventTypeAuthSuccess,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       ActorFromUser(u, sid),
		Action:      "login",
		Description: "User logged in",
	})
}

// LogLoginFailure records a rejected login for email. The password is
// never recorded.
func (l *Logger) LogLoginFailure(r *http.Request, email string) {
	l.logRequest(r, &Event{
		Type:        EventTypeAuthFailure,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{ID: "anonymous", Type: "anonymous", Name: email},
		Action:      "login",
		Description: "Invalid email or password",
	})
}

// LogLogout records the end of session sid.
func (l *Logger) LogLogout(r *http.Request, sid string) {
	l.logRequest(r, &Event{
		Type:        EventTypeLogout,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actorFromRequest(r),
		Target:      &Target{ID: sid, Type: "session"},
		Action:      "logout",
		Description: "User logged out",
	})
}

// LogUserCreated records a registration.
func (l *Logger) LogUserCreated(r *http.Request, u *models.User) {
	l.logRequest(r, &Event{
		Type:        EventTypeUserCreated,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actorFromRequest(r),
		Target:      userTarget(u),
		Action:      "register",
		Description: "Account registered with role " + u.Role,
		Metadata:    mustJSON(map[string]string{"role": u.Role}),
	})
}

// LogRoleChanged records an admin changing u's role from oldRole.
func (l *Logger) LogRoleChanged(r *http.Request, u *models.User, oldRole string) {
	l.logRequest(r, &Event{
		Type:        EventTypeRoleAssigned,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       actorFromRequest(r),
		Target:      userTarget(u),
		Action:      "set_role",
		Description: "Role changed from " + oldRole + " to " + u.Role,
		Metadata:    mustJSON(map[string]string{"old_role": oldRole, "new_role": u.Role}),
	})
}

// LogUserDeleted records an admin deleting an account.
func (l *Logger) LogUserDeleted(r *http.Request, userID int64, sessions int) {
	l.logRequest(r, &Event{
		Type:        EventTypeUserDeleted,
		Severity:    SeverityCritical,
		Outcome:     OutcomeSuccess,
		Actor:       actorFromRequest(r),
		Target:      &Target{ID: strconv.FormatInt(userID, 10), Type: "user"},
		Action:      "delete_user",
		Description: "Account deleted with its favorites and sessions",
		Metadata:    mustJSON(map[string]int{"sessions_revoked": sessions}),
	})
}

// LogCacheAction records an admin evicting or refreshing a cached title.
func (l *Logger) LogCacheAction(r *http.Request, typ EventType, animeID int) {
	desc := "Anime cache record evicted"
	if typ == EventTypeCacheRefreshed {
		desc = "Anime cache refresh queued"
	}
	l.logRequest(r, &Event{
		Type:        typ,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actorFromRequest(r),
		Target:      &Target{ID: strconv.Itoa(animeID), Type: "anime"},
		Action:      string(typ),
		Description: desc,
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
