// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
)

var (
	// ErrListNotFound is returned for unknown, expired or foreign list ids.
	ErrListNotFound = errors.New("list not found")

	// ErrInvalidKind is returned for an unknown list kind.
	ErrInvalidKind = errors.New("unknown list kind")
)

// ListSpec describes a list to open.
type ListSpec struct {
	Kind    string `json:"kind" validate:"required,oneof=browse favorites characters recommendations"`
	Query   string `json:"q,omitempty" validate:"max=200"`
	GenreID int    `json:"genre,omitempty" validate:"gte=0"`
	Sort    string `json:"sort,omitempty"`
	AnimeID int    `json:"anime_id,omitempty" validate:"gte=0"`
}

func (s ListSpec) browseQuery() jikan.BrowseQuery {
	return jikan.BrowseQuery{Query: s.Query, GenreID: s.GenreID, Sort: jikan.ParseSort(s.Sort)}
}

// Owner identifies who opened a list. SessionID is empty for anonymous
// callers, who are told apart by Client, their network address. Lists are
// reachable only by the owner that opened them.
type Owner struct {
	SessionID string
	Client    string
	User      *models.User
}

// key is the ownership and quota key of o.
func (o Owner) key() string {
	if o.SessionID != "" {
		return o.SessionID
	}
	return "anon:" + o.Client
}

// FavoritesFor returns the persistence collaborator for a user.
type FavoritesFor func(userID int64) favorites.Collaborator

type registryEntry struct {
	list     List
	owner    string
	userID   int64
	lastUsed time.Time
}

// Registry holds the open server-side lists and the favorite overlays of
// the users who own them.
type Registry struct {
	svc       *Service
	favorites FavoritesFor
	idleTTL   time.Duration
	maxPerOwn int
	now       func() time.Time

	// onClose runs after a list is closed by the registry.
	onClose func(listID string)

	mu       sync.Mutex
	lists    map[string]*registryEntry
	overlays map[int64]*favorites.Overlay
	anon     *favorites.Overlay
}

// NewRegistry creates an empty registry. favs may be nil when no user can
// log in.
func NewRegistry(svc *Service, favs FavoritesFor) *Registry {
	cfg := svc.Config()
	ttl := cfg.ListIdleTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	maxPer := cfg.MaxListsPerSession
	if maxPer <= 0 {
		maxPer = 16
	}
	return &Registry{
		svc:       svc,
		favorites: favs,
		idleTTL:   ttl,
		maxPerOwn: maxPer,
		now:       time.Now,
		lists:     make(map[string]*registryEntry),
		overlays:  make(map[int64]*favorites.Overlay),
		anon:      favorites.NewOverlay(favorites.Session{}, nil),
	}
}

// OnClose registers fn to run after each list the registry closes, for
// example to end its streams. It must be set before the registry is used.
func (r *Registry) OnClose(fn func(listID string)) {
	r.onClose = fn
}

func (r *Registry) closed(ids ...string) {
	if r.onClose == nil {
		return
	}
	for _, id := range ids {
		r.onClose(id)
	}
}

// Overlay returns the shared favorite set of u, loading it on first use.
// A nil user gets an empty anonymous overlay.
func (r *Registry) Overlay(ctx context.Context, u *models.User) (*favorites.Overlay, error) {
	if u == nil || r.favorites == nil {
		return r.anon, nil
	}

	r.mu.Lock()
	o, ok := r.overlays[u.ID]
	r.mu.Unlock()
	if ok {
		return o, nil
	}

	o = favorites.NewOverlay(favorites.Session{User: u}, r.favorites(u.ID))
	if err := o.Sync(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.overlays[u.ID]; ok {
		return existing, nil
	}
	r.overlays[u.ID] = o
	return o, nil
}

// NotifyFavorite reconciles a favorite written outside an overlay.
func (r *Registry) NotifyFavorite(userID int64, animeID int, favorite bool) {
	r.mu.Lock()
	o := r.overlays[userID]
	r.mu.Unlock()
	if o != nil {
		o.Set(animeID, favorite)
	}
}

// Create opens a list for owner.
func (r *Registry) Create(ctx context.Context, owner Owner, spec ListSpec) (List, error) {
	cfg := r.svc.Config()
	id := uuid.NewString()
	pcfg := paginate.Config{
		Kind:        spec.Kind,
		ChunkSize:   cfg.PageSize,
		MaxRetained: cfg.MaxRetained,
		Threshold:   cfg.ScrollThreshold,
	}

	overlay, err := r.Overlay(ctx, owner.User)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}

	var l List
	switch spec.Kind {
	case KindBrowse:
		q := spec.browseQuery()
		pcfg.Endpoint = q.Endpoint().String()
		l = newEngineList(id, r.svc.BrowseSource(q), itemKey, pcfg, overlay)

	case KindFavorites:
		if owner.User == nil || r.favorites == nil {
			return nil, favorites.ErrUnauthenticated
		}
		collab := r.favorites(owner.User.ID)
		pcfg.Endpoint = "favorites"
		l = newEngineList(id, r.svc.FavoritesSource(collab.ListFavoriteIDs, spec.browseQuery()), itemKey, pcfg, overlay)

	case KindCharacters:
		if spec.AnimeID <= 0 {
			return nil, ErrInvalidID
		}
		pcfg.ChunkSize = cfg.DetailChunkSize
		pcfg.Endpoint = fmt.Sprintf("/anime/%d/characters", spec.AnimeID)
		l = newEngineList(id, r.svc.CharactersSource(spec.AnimeID), characterKey, pcfg, nil)

	case KindRecommendations:
		if spec.AnimeID <= 0 {
			return nil, ErrInvalidID
		}
		pcfg.ChunkSize = cfg.DetailChunkSize
		pcfg.Endpoint = jikan.RecommendationsEndpoint(spec.AnimeID).String()
		l = newEngineList(id, r.svc.RecommendationsSource(spec.AnimeID), recommendationKey, pcfg, overlay)

	default:
		return nil, ErrInvalidKind
	}

	var userID int64
	if owner.User != nil {
		userID = owner.User.ID
	}

	key := owner.key()
	r.mu.Lock()
	evicted := r.evictOverLimitLocked(key)
	r.lists[id] = &registryEntry{list: l, owner: key, userID: userID, lastUsed: r.now()}
	n := len(r.lists)
	r.mu.Unlock()

	r.closed(evicted...)

	metrics.ActiveLists.Set(float64(n))
	logging.Ctx(ctx).Debug().Str("list_id", id).Str("kind", spec.Kind).Msg("List opened")
	return l, nil
}

// evictOverLimitLocked closes the least recently used lists of owner so
// one more fits. It returns the ids it closed.
func (r *Registry) evictOverLimitLocked(owner string) (evicted []string) {
	for {
		var (
			count  int
			oldest *registryEntry
		)
		for _, e := range r.lists {
			if e.owner != owner {
				continue
			}
			count++
			if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
				oldest = e
			}
		}
		if count < r.maxPerOwn || oldest == nil {
			return evicted
		}
		oldest.list.Close()
		delete(r.lists, oldest.list.ID())
		evicted = append(evicted, oldest.list.ID())
	}
}

// Get returns the list if owner may use it.
func (r *Registry) Get(owner Owner, id string) (List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lists[id]
	if !ok || e.owner != owner.key() {
		return nil, ErrListNotFound
	}
	e.lastUsed = r.now()
	return e.list, nil
}

// Delete closes and forgets a list.
func (r *Registry) Delete(owner Owner, id string) error {
	r.mu.Lock()
	e, ok := r.lists[id]
	if !ok || e.owner != owner.key() {
		r.mu.Unlock()
		return ErrListNotFound
	}
	delete(r.lists, id)
	n := len(r.lists)
	r.mu.Unlock()

	e.list.Close()
	metrics.ActiveLists.Set(float64(n))
	r.closed(id)
	return nil
}

// CloseSession closes every list opened under a session, for logout.
func (r *Registry) CloseSession(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	return r.closeWhere(func(e *registryEntry) bool { return e.owner == sessionID })
}

// DropUser closes the user's lists and forgets the favorite overlay, for
// account deletion.
func (r *Registry) DropUser(userID int64) int {
	r.mu.Lock()
	delete(r.overlays, userID)
	r.mu.Unlock()
	return r.closeWhere(func(e *registryEntry) bool { return e.userID == userID })
}

// Sweep closes lists idle for longer than the TTL.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	return r.closeWhere(func(e *registryEntry) bool { return e.lastUsed.Before(cutoff) })
}

func (r *Registry) closeWhere(match func(*registryEntry) bool) int {
	r.mu.Lock()
	var victims []List
	for id, e := range r.lists {
		if match(e) {
			victims = append(victims, e.list)
			delete(r.lists, id)
		}
	}
	n := len(r.lists)
	r.mu.Unlock()

	for _, l := range victims {
		l.Close()
		r.closed(l.ID())
	}
	metrics.ActiveLists.Set(float64(n))
	return len(victims)
}

// Len returns the number of open lists.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

// CloseAll closes every list.
func (r *Registry) CloseAll() {
	r.closeWhere(func(*registryEntry) bool { return true })
}

// Sweeper runs Registry.Sweep on an interval. It implements
// suture.Service.
type Sweeper struct {
	registry *Registry
	interval time.Duration
}

// NewSweeper checks every half idle TTL, at most once a minute.
func NewSweeper(r *Registry) *Sweeper {
	interval := r.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{registry: r, interval: interval}
}

// Serve runs until ctx is done, then closes every list.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.registry.CloseAll()
			return ctx.Err()
		case <-ticker.C:
			if n := s.registry.Sweep(); n > 0 {
				logging.Debug().Int("closed", n).Msg("Idle lists closed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *Sweeper) String() string { return "list-sweeper" }

func itemKey(it models.CatalogItem) int { return it.ID }

func characterKey(c models.Character) int { return c.ID }

func recommendationKey(r models.Recommendation) int { return r.ID }
