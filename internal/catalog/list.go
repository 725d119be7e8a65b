// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package catalog

import (
	"context"
	"sync"

	"github.com/tomtom215/animescope/internal/paginate"
)

// List kinds.
const (
	KindBrowse          = "browse"
	KindFavorites       = "favorites"
	KindCharacters      = "characters"
	KindRecommendations = "recommendations"
)

// Batch is an engine result with the item type erased for transport.
type Batch = paginate.Result[any]

// Snapshot is the retained state of a list.
type Snapshot struct {
	ID       string                    `json:"id"`
	Kind     string                    `json:"kind"`
	State    paginate.State            `json:"state"`
	Cursor   paginate.Cursor           `json:"cursor"`
	Offset   int                       `json:"offset"`
	Viewport paginate.Viewport         `json:"viewport"`
	Items    []paginate.Annotated[any] `json:"items"`
}

// List is one server-side pagination engine, independent of its item type.
type List interface {
	ID() string
	Kind() string
	LoadNext(ctx context.Context) (Batch, error)
	Scroll(ctx context.Context, vp paginate.Viewport) (Batch, error)
	Snapshot() Snapshot
	// Attach routes engine output to r until the returned func is called.
	Attach(r paginate.Renderer[any]) (detach func())
	Close()
}

// sink forwards engine output to whichever renderer is attached.
type sink[T any] struct {
	mu sync.Mutex
	r  paginate.Renderer[any]
}

func (s *sink[T]) Append(batch []paginate.Annotated[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r != nil {
		s.r.Append(eraseBatch(batch))
	}
}

func (s *sink[T]) RemoveOldest(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r != nil {
		s.r.RemoveOldest(n)
	}
}

type engineList[T any] struct {
	id     string
	engine *paginate.Engine[T]
	sink   *sink[T]
}

func newEngineList[T any](id string, src paginate.Source[T], key func(T) int, cfg paginate.Config, annot paginate.Annotator) *engineList[T] {
	s := &sink[T]{}
	opts := []paginate.Option[T]{paginate.WithRenderer[T](s)}
	if annot != nil {
		opts = append(opts, paginate.WithAnnotator[T](annot))
	}
	return &engineList[T]{id: id, engine: paginate.New(src, key, cfg, opts...), sink: s}
}

func (l *engineList[T]) ID() string   { return l.id }
func (l *engineList[T]) Kind() string { return l.engine.Kind() }

func (l *engineList[T]) LoadNext(ctx context.Context) (Batch, error) {
	res, err := l.engine.LoadNext(ctx)
	return eraseResult(res), err
}

func (l *engineList[T]) Scroll(ctx context.Context, vp paginate.Viewport) (Batch, error) {
	res, err := l.engine.Scroll(ctx, vp)
	return eraseResult(res), err
}

func (l *engineList[T]) Snapshot() Snapshot {
	return Snapshot{
		ID:       l.id,
		Kind:     l.engine.Kind(),
		State:    l.engine.State(),
		Cursor:   l.engine.Cursor(),
		Offset:   l.engine.Offset(),
		Viewport: l.engine.Viewport(),
		Items:    eraseBatch(l.engine.Items()),
	}
}

func (l *engineList[T]) Attach(r paginate.Renderer[any]) func() {
	l.sink.mu.Lock()
	l.sink.r = r
	l.sink.mu.Unlock()

	return func() {
		l.sink.mu.Lock()
		if l.sink.r == r {
			l.sink.r = nil
		}
		l.sink.mu.Unlock()
	}
}

func (l *engineList[T]) Close() { l.engine.Close() }

func eraseBatch[T any](batch []paginate.Annotated[T]) []paginate.Annotated[any] {
	if batch == nil {
		return nil
	}
	out := make([]paginate.Annotated[any], len(batch))
	for i, a := range batch {
		out[i] = paginate.Annotated[any]{Item: a.Item, Favorite: a.Favorite}
	}
	return out
}

func eraseResult[T any](r paginate.Result[T]) Batch {
	return Batch{
		Batch:   eraseBatch(r.Batch),
		Removed: r.Removed,
		State:   r.State,
		Skipped: r.Skipped,
		Stale:   r.Stale,
	}
}
