// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package paginate merges successive pages from a Source into one growing,
// deduplicated and bounded list.
//
// An Engine moves between three states:
//
//	Idle --LoadNext--> Loading --ok, more pages--> Idle
//	                           --ok, last page---> Exhausted
//	                           --error-----------> Idle (page not advanced)
//
// LoadNext is a no-op while Loading or Exhausted, so at most one fetch per
// engine is ever in flight. Results that arrive after Close or Reset are
// dropped without touching the list or the renderer.
package paginate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
)

// State is the engine lifecycle state.
type State int

const (
	Idle State = iota
	Loading
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cursor tracks the next page to request.
type Cursor struct {
	Endpoint  string `json:"endpoint"`
	Page      int    `json:"page"`
	HasNext   bool   `json:"has_next"`
	ChunkSize int    `json:"chunk_size"`
}

// Viewport is the inclusive index range currently visible, relative to the
// retained items.
type Viewport struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Annotated pairs an item with its favorite flag at emission time.
type Annotated[T any] struct {
	Item     T    `json:"item"`
	Favorite bool `json:"favorite"`
}

// Annotator reports favorite membership. A nil Annotator marks nothing.
type Annotator interface {
	IsFavorite(id int) bool
}

// Renderer receives list mutations in order. Its methods are called
// without the engine lock held but must not call LoadNext or Scroll.
type Renderer[T any] interface {
	Append(batch []Annotated[T])
	RemoveOldest(n int)
}

// Resetter is implemented by renderers that can clear themselves when the
// engine is reset for a new query.
type Resetter interface {
	Reset()
}

// Config tunes an Engine.
type Config struct {
	// Kind labels metrics and logs (browse, favorites, characters, ...).
	Kind string
	// Endpoint is informational and copied into the Cursor.
	Endpoint string
	// ChunkSize is the limit passed to the Source.
	ChunkSize int
	// MaxRetained bounds the list. Zero selects DefaultMaxRetained.
	MaxRetained int
	// Threshold is how close (in items) the viewport end must come to the
	// list end before Scroll triggers a load. Zero selects
	// DefaultThreshold.
	Threshold int
}

// Defaults used when Config leaves a field at zero.
const (
	DefaultChunkSize   = 25
	DefaultMaxRetained = 500
	DefaultThreshold   = 5
)

// Result describes what a LoadNext or Scroll call did.
type Result[T any] struct {
	Batch   []Annotated[T] `json:"batch"`
	Removed int            `json:"removed"`
	State   State          `json:"state"`
	// Skipped is true when no fetch was made.
	Skipped bool `json:"skipped"`
	// Stale is true when the fetch completed after Close or Reset and was
	// discarded.
	Stale bool `json:"stale"`
}

// Engine is the incremental pagination engine for one list.
type Engine[T any] struct {
	key      func(T) int
	annot    Annotator
	renderer Renderer[T]
	cfg      Config

	mu       sync.Mutex
	src      Source[T]
	items    []T
	seen     map[int]struct{}
	cursor   Cursor
	state    State
	viewport Viewport
	vpKnown  bool
	offset   int // items pruned so far

	// gen changes on Close and Reset; fetches compare it to detect staleness.
	gen    atomic.Uint64
	closed atomic.Bool

	// emitMu orders renderer calls and lets Close wait for one in progress.
	emitMu sync.Mutex
}

// Option configures optional collaborators.
type Option[T any] func(*Engine[T])

// WithAnnotator sets the favorite membership source.
func WithAnnotator[T any](a Annotator) Option[T] {
	return func(e *Engine[T]) { e.annot = a }
}

// WithRenderer sets the mutation sink.
func WithRenderer[T any](r Renderer[T]) Option[T] {
	return func(e *Engine[T]) { e.renderer = r }
}

// New creates an idle engine positioned at page 1.
func New[T any](src Source[T], key func(T) int, cfg Config, opts ...Option[T]) *Engine[T] {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = DefaultMaxRetained
	}
	if cfg.MaxRetained < cfg.ChunkSize {
		cfg.MaxRetained = cfg.ChunkSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Kind == "" {
		cfg.Kind = "list"
	}

	e := &Engine[T]{
		key:  key,
		cfg:  cfg,
		src:  src,
		seen: make(map[int]struct{}),
	}
	e.cursor = Cursor{Endpoint: cfg.Endpoint, Page: 1, HasNext: true, ChunkSize: cfg.ChunkSize}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LoadNext fetches the next page when the engine is Idle. On success the
// new, not yet seen items are appended and emitted; on failure the engine
// returns to Idle with the cursor unchanged and the error is returned.
func (e *Engine[T]) LoadNext(ctx context.Context) (Result[T], error) {
	e.mu.Lock()
	if e.closed.Load() || e.state != Idle {
		r := Result[T]{State: e.state, Skipped: true}
		e.mu.Unlock()
		return r, nil
	}
	e.state = Loading
	gen := e.gen.Load()
	src := e.src
	page, limit := e.cursor.Page, e.cursor.ChunkSize
	e.mu.Unlock()

	p, err := src.FetchPage(ctx, page, limit)

	e.mu.Lock()
	if e.closed.Load() || gen != e.gen.Load() {
		r := Result[T]{State: e.state, Stale: true}
		e.mu.Unlock()
		metrics.RecordPageLoad(e.cfg.Kind, "stale")
		return r, nil
	}

	if err != nil {
		e.state = Idle
		e.mu.Unlock()
		metrics.RecordPageLoad(e.cfg.Kind, "error")
		logging.Ctx(ctx).Warn().Err(err).Str("kind", e.cfg.Kind).Int("page", page).Msg("Page load failed")
		return Result[T]{State: Idle}, err
	}

	oldLen := len(e.items)
	batch := make([]Annotated[T], 0, len(p.Items))
	for _, it := range p.Items {
		k := e.key(it)
		if _, dup := e.seen[k]; dup {
			continue
		}
		e.seen[k] = struct{}{}
		e.items = append(e.items, it)
		batch = append(batch, Annotated[T]{Item: it, Favorite: e.isFavorite(k)})
	}

	e.cursor.Page++
	e.cursor.HasNext = p.HasNext
	if p.HasNext {
		e.state = Idle
	} else {
		e.state = Exhausted
	}

	removed := e.pruneLocked(oldLen)
	res := Result[T]{Batch: batch, Removed: removed, State: e.state}

	// Take emitMu before releasing mu so emissions keep load order.
	e.emitMu.Lock()
	e.mu.Unlock()
	e.emit(gen, batch, removed)
	e.emitMu.Unlock()

	metrics.RecordPageLoad(e.cfg.Kind, "ok")
	metrics.RecordPrune(e.cfg.Kind, removed)
	logging.Ctx(ctx).Debug().Str("kind", e.cfg.Kind).Int("page", page).Int("added", len(batch)).
		Int("removed", removed).Str("state", res.State.String()).Msg("Page loaded")
	return res, nil
}

// emit must be called with emitMu held.
func (e *Engine[T]) emit(gen uint64, batch []Annotated[T], removed int) {
	if e.renderer == nil || e.closed.Load() || gen != e.gen.Load() {
		return
	}
	if len(batch) > 0 {
		e.renderer.Append(batch)
	}
	if removed > 0 {
		e.renderer.RemoveOldest(removed)
	}
}

// pruneLocked trims the oldest items once the list exceeds MaxRetained and
// the viewport sat near the end before this append. Visible items are
// never removed. Pruned ids stay in the seen set.
func (e *Engine[T]) pruneLocked(preAppendLen int) int {
	excess := len(e.items) - e.cfg.MaxRetained
	if excess <= 0 {
		return 0
	}

	first := preAppendLen
	if e.vpKnown {
		if preAppendLen-1-e.viewport.Last > e.cfg.Threshold {
			return 0
		}
		first = e.viewport.First
	}
	n := min(excess, first)
	if n <= 0 {
		return 0
	}

	var zero T
	for i := range n {
		e.items[i] = zero
	}
	e.items = e.items[n:]
	e.offset += n
	if e.vpKnown {
		e.viewport.First -= n
		e.viewport.Last -= n
	}
	return n
}

// Scroll records the viewport and loads the next page when its end is
// within Threshold items of the list end, nothing is in flight and more
// pages exist.
func (e *Engine[T]) Scroll(ctx context.Context, vp Viewport) (Result[T], error) {
	e.mu.Lock()
	if vp.First < 0 {
		vp.First = 0
	}
	if vp.Last < vp.First-1 {
		vp.Last = vp.First - 1
	}
	e.viewport, e.vpKnown = vp, true
	trigger := e.state == Idle && e.cursor.HasNext && !e.closed.Load() &&
		len(e.items)-1-vp.Last <= e.cfg.Threshold
	state := e.state
	e.mu.Unlock()

	if !trigger {
		return Result[T]{State: state, Skipped: true}, nil
	}
	return e.LoadNext(ctx)
}

// Reset discards the list and starts over from page 1 against src. A nil
// src keeps the current one. An in-flight fetch becomes stale.
func (e *Engine[T]) Reset(src Source[T]) {
	e.mu.Lock()
	e.gen.Add(1)
	if src != nil {
		e.src = src
	}
	e.items = nil
	e.seen = make(map[int]struct{})
	e.cursor.Page = 1
	e.cursor.HasNext = true
	e.state = Idle
	e.viewport, e.vpKnown = Viewport{}, false
	e.offset = 0
	e.mu.Unlock()

	e.emitMu.Lock()
	if r, ok := e.renderer.(Resetter); ok && !e.closed.Load() {
		r.Reset()
	}
	e.emitMu.Unlock()
}

// Close makes the engine inert. After Close returns no renderer call is in
// progress and none will follow.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	e.closed.Store(true)
	e.gen.Add(1)
	e.mu.Unlock()

	e.emitMu.Lock()
	//nolint:staticcheck // empty critical section waits for an emission in progress
	e.emitMu.Unlock()
}

// Closed reports whether Close was called.
func (e *Engine[T]) Closed() bool {
	return e.closed.Load()
}

// State returns the current state.
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cursor returns a copy of the cursor.
func (e *Engine[T]) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Len returns the number of retained items.
func (e *Engine[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Offset returns how many items have been pruned from the front.
func (e *Engine[T]) Offset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset
}

// Viewport returns the last recorded viewport.
func (e *Engine[T]) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// Items returns the retained items annotated with current favorite flags.
func (e *Engine[T]) Items() []Annotated[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Annotated[T], len(e.items))
	for i, it := range e.items {
		out[i] = Annotated[T]{Item: it, Favorite: e.isFavorite(e.key(it))}
	}
	return out
}

// Contains reports whether id is among the retained items.
func (e *Engine[T]) Contains(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.items {
		if e.key(it) == id {
			return true
		}
	}
	return false
}

// Kind returns the configured list kind.
func (e *Engine[T]) Kind() string { return e.cfg.Kind }

func (e *Engine[T]) isFavorite(id int) bool {
	return e.annot != nil && e.annot.IsFavorite(id)
}
