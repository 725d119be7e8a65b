// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package favorites keeps a per-session set of favorite anime ids in step
// with the persistence collaborator and marks list items with it.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
)

var (
	// ErrUnauthenticated is returned by Toggle when the session has no user.
	ErrUnauthenticated = errors.New("login required to manage favorites")

	// ErrToggleInProgress is returned when the same id is toggled again
	// before the previous toggle finished.
	ErrToggleInProgress = errors.New("favorite toggle already in progress")

	// ErrInvalidID is returned for ids that are not positive.
	ErrInvalidID = errors.New("anime id must be a positive integer")
)

// Session is the session-scoped context: who is browsing. A nil User means
// anonymous.
type Session struct {
	User *models.User
}

// Authenticated reports whether a user is logged in.
func (s Session) Authenticated() bool { return s.User != nil }

// Collaborator persists favorites for the session user.
type Collaborator interface {
	ListFavoriteIDs(ctx context.Context) ([]int, error)
	AddFavorite(ctx context.Context, animeID int) error
	RemoveFavorite(ctx context.Context, animeID int) error
}

// ChangeFunc is notified after a toggle or reconcile settles.
type ChangeFunc func(animeID int, favorite bool)

// Overlay is the favorite set for one session. It is safe for concurrent use.
type Overlay struct {
	session Session
	collab  Collaborator

	mu       sync.RWMutex
	ids      map[int]struct{}
	inflight map[int]struct{}
	onChange map[int]ChangeFunc
	nextSub  int
}

// NewOverlay creates an empty overlay. Call Sync to load the stored set.
func NewOverlay(session Session, collab Collaborator) *Overlay {
	return &Overlay{
		session:  session,
		collab:   collab,
		ids:      make(map[int]struct{}),
		inflight: make(map[int]struct{}),
		onChange: make(map[int]ChangeFunc),
	}
}

// Session returns the session the overlay was built for.
func (o *Overlay) Session() Session { return o.session }

// OnChange registers fn for settled changes. The returned func removes it.
func (o *Overlay) OnChange(fn ChangeFunc) (cancel func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.onChange[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.onChange, id)
		o.mu.Unlock()
	}
}

// listenersLocked copies the registered listeners.
func (o *Overlay) listenersLocked() []ChangeFunc {
	out := make([]ChangeFunc, 0, len(o.onChange))
	for _, fn := range o.onChange {
		out = append(out, fn)
	}
	return out
}

// Sync replaces the set with the collaborator's view. Anonymous sessions
// get an empty set without a call.
func (o *Overlay) Sync(ctx context.Context) error {
	if !o.session.Authenticated() {
		o.mu.Lock()
		o.ids = make(map[int]struct{})
		o.mu.Unlock()
		return nil
	}

	list, err := o.collab.ListFavoriteIDs(ctx)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}

	ids := make(map[int]struct{}, len(list))
	for _, id := range list {
		if id > 0 {
			ids[id] = struct{}{}
		}
	}

	o.mu.Lock()
	// Keep optimistic state for toggles still in flight.
	for id := range o.inflight {
		if _, ok := o.ids[id]; ok {
			ids[id] = struct{}{}
		} else {
			delete(ids, id)
		}
	}
	o.ids = ids
	o.mu.Unlock()

	logging.Ctx(ctx).Debug().Int("count", len(ids)).Msg("Favorites synchronized")
	return nil
}

// IsFavorite implements paginate.Annotator.
func (o *Overlay) IsFavorite(id int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.ids[id]
	return ok
}

// IDs returns the set in ascending order.
func (o *Overlay) IDs() []int {
	o.mu.RLock()
	out := make([]int, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	o.mu.RUnlock()
	sort.Ints(out)
	return out
}

// Len returns the number of favorites.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.ids)
}

// Toggle flips id and persists the change. The local set is updated before
// the call and restored if the call fails. It returns the new membership.
func (o *Overlay) Toggle(ctx context.Context, id int) (bool, error) {
	if !o.session.Authenticated() {
		metrics.FavoriteToggles.WithLabelValues("none", "unauthenticated").Inc()
		return false, ErrUnauthenticated
	}
	if id <= 0 {
		return false, ErrInvalidID
	}

	o.mu.Lock()
	if _, busy := o.inflight[id]; busy {
		o.mu.Unlock()
		return o.IsFavorite(id), ErrToggleInProgress
	}
	_, was := o.ids[id]
	add := !was
	o.setLocked(id, add)
	o.inflight[id] = struct{}{}
	o.mu.Unlock()

	var err error
	if add {
		err = o.collab.AddFavorite(ctx, id)
	} else {
		err = o.collab.RemoveFavorite(ctx, id)
	}

	o.mu.Lock()
	delete(o.inflight, id)
	if err != nil {
		o.setLocked(id, was)
	}
	listeners := o.listenersLocked()
	o.mu.Unlock()

	if err != nil {
		metrics.RecordFavoriteToggle(add, "rolled_back")
		logging.Ctx(ctx).Warn().Err(err).Int("anime_id", id).Bool("add", add).Msg("Favorite toggle failed, reverted")
		return was, err
	}

	metrics.RecordFavoriteToggle(add, "ok")
	for _, fn := range listeners {
		fn(id, add)
	}
	return add, nil
}

// Set reconciles membership from an external source, such as a write made
// through the REST API on another device.
func (o *Overlay) Set(id int, favorite bool) {
	o.mu.Lock()
	_, was := o.ids[id]
	o.setLocked(id, favorite)
	listeners := o.listenersLocked()
	o.mu.Unlock()

	if was != favorite {
		for _, fn := range listeners {
			fn(id, favorite)
		}
	}
}

func (o *Overlay) setLocked(id int, favorite bool) {
	if favorite {
		o.ids[id] = struct{}{}
	} else {
		delete(o.ids, id)
	}
}
