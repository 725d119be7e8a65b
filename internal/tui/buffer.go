// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package tui

import (
	"sync"

	"github.com/tomtom215/animescope/internal/paginate"
)

// Op is one list mutation recorded by a Buffer.
type Op[T any] struct {
	Batch   []paginate.Annotated[T]
	Removed int
	Reset   bool
}

// Buffer is a paginate.Renderer that queues mutations for the UI goroutine.
// The engine calls it from whichever goroutine ran the load; the model
// drains it when that load completes.
type Buffer[T any] struct {
	mu  sync.Mutex
	ops []Op[T]
}

var (
	_ paginate.Renderer[int] = (*Buffer[int])(nil)
	_ paginate.Resetter      = (*Buffer[int])(nil)
)

// Append implements paginate.Renderer.
func (b *Buffer[T]) Append(batch []paginate.Annotated[T]) {
	b.mu.Lock()
	b.ops = append(b.ops, Op[T]{Batch: batch})
	b.mu.Unlock()
}

// RemoveOldest implements paginate.Renderer.
func (b *Buffer[T]) RemoveOldest(n int) {
	b.mu.Lock()
	b.ops = append(b.ops, Op[T]{Removed: n})
	b.mu.Unlock()
}

// Reset implements paginate.Resetter.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	b.ops = append(b.ops[:0], Op[T]{Reset: true})
	b.mu.Unlock()
}

// Drain returns the queued mutations in order and clears the queue.
func (b *Buffer[T]) Drain() []Op[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := b.ops
	b.ops = nil
	return ops
}

// Apply replays ops onto rows and returns the new rows and how many rows
// were removed from the front in total. A reset reports -1.
func Apply[T any](rows []paginate.Annotated[T], ops []Op[T]) ([]paginate.Annotated[T], int) {
	removed := 0
	for _, op := range ops {
		switch {
		case op.Reset:
			rows = nil
			removed = -1
		case op.Removed > 0:
			n := min(op.Removed, len(rows))
			rows = rows[n:]
			if removed >= 0 {
				removed += n
			}
		default:
			rows = append(rows, op.Batch...)
		}
	}
	return rows, removed
}
