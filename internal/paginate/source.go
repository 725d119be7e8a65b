// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package paginate

import (
	"context"
	"sync"
	"time"
)

// Page is one chunk returned by a Source.
type Page[T any] struct {
	Items   []T
	HasNext bool
}

// Source yields pages of T. page is 1-based; limit is the requested chunk size.
type Source[T any] interface {
	FetchPage(ctx context.Context, page, limit int) (Page[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, page, limit int) (Page[T], error)

// FetchPage implements Source.
func (f SourceFunc[T]) FetchPage(ctx context.Context, page, limit int) (Page[T], error) {
	return f(ctx, page, limit)
}

// SliceSource serves an in-memory list in chunks. The list is produced by
// load on first use and kept afterwards; a failed load is retried on the
// next fetch.
type SliceSource[T any] struct {
	mu     sync.Mutex
	load   func(ctx context.Context) ([]T, error)
	items  []T
	loaded bool
}

// NewSliceSource serves a fixed list.
func NewSliceSource[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items, loaded: true}
}

// NewLazySliceSource serves the list returned by load.
func NewLazySliceSource[T any](load func(ctx context.Context) ([]T, error)) *SliceSource[T] {
	return &SliceSource[T]{load: load}
}

// FetchPage implements Source.
func (s *SliceSource[T]) FetchPage(ctx context.Context, page, limit int) (Page[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		items, err := s.load(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		s.items, s.loaded = items, true
	}
	return slicePage(s.items, page, limit), nil
}

// Len returns the list length, or 0 before the first successful load.
func (s *SliceSource[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func slicePage[T any](items []T, page, limit int) Page[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = len(items)
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return Page[T]{}
	}
	end := min(start+limit, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, HasNext: end < len(items)}
}

// Rechunk serves fixed-size chunks out of an upstream source whose pages
// have a different, possibly varying, size. Upstream pages are pulled until
// the requested chunk is full or the upstream is exhausted.
type Rechunk[T any] struct {
	mu       sync.Mutex
	upstream Source[T]
	buf      []T
	nextPage int
	hasNext  bool
	pause    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRechunk wraps upstream. pause is waited between consecutive upstream
// requests made for the same chunk.
func NewRechunk[T any](upstream Source[T], pause time.Duration) *Rechunk[T] {
	return &Rechunk[T]{
		upstream: upstream,
		nextPage: 1,
		hasNext:  true,
		pause:    pause,
		sleep:    SleepContext,
	}
}

// FetchPage implements Source.
func (r *Rechunk[T]) FetchPage(ctx context.Context, page, limit int) (Page[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	want := page * limit
	pulled := 0
	for len(r.buf) < want && r.hasNext {
		if pulled > 0 {
			if err := r.sleep(ctx, r.pause); err != nil {
				return Page[T]{}, err
			}
		}
		p, err := r.upstream.FetchPage(ctx, r.nextPage, 0)
		if err != nil {
			return Page[T]{}, err
		}
		r.buf = append(r.buf, p.Items...)
		r.hasNext = p.HasNext
		r.nextPage++
		pulled++
	}

	out := slicePage(r.buf, page, limit)
	out.HasNext = out.HasNext || r.hasNext
	return out, nil
}

// SleepContext waits for d or until ctx is done. It returns ctx.Err() when
// ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
