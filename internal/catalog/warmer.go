// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package catalog

import (
	"context"
	"time"

	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/metrics"
	"github.com/tomtom215/animescope/internal/models"
)

// warmTimeout bounds one cache refresh including upstream retries.
const warmTimeout = 30 * time.Second

// CacheWarmer refreshes the local copy of titles that were just favorited.
// Work is queued so the favorite write does not wait on the upstream. It
// implements suture.Service.
type CacheWarmer struct {
	upstream Upstream
	cache    CacheWriter
	queue    chan int
}

// NewCacheWarmer creates a warmer with room for size pending ids.
func NewCacheWarmer(up Upstream, cache CacheWriter, size int) *CacheWarmer {
	if size <= 0 {
		size = 256
	}
	return &CacheWarmer{upstream: up, cache: cache, queue: make(chan int, size)}
}

// Enqueue schedules id. It never blocks; when the queue is full the id is
// dropped and false is returned.
func (w *CacheWarmer) Enqueue(id int) bool {
	if id <= 0 {
		return false
	}
	select {
	case w.queue <- id:
		return true
	default:
		metrics.CacheUpserts.WithLabelValues("dropped").Inc()
		return false
	}
}

// AfterAdd matches database.UserFavorites.AfterAdd.
func (w *CacheWarmer) AfterAdd(_ context.Context, id int) { w.Enqueue(id) }

// Serve drains the queue until ctx is done.
func (w *CacheWarmer) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-w.queue:
			w.Warm(ctx, id)
		}
	}
}

// Warm fetches id and upserts it. Failures are logged and counted only.
func (w *CacheWarmer) Warm(ctx context.Context, id int) {
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	item, err := w.upstream.Anime(ctx, id)
	if err != nil {
		metrics.CacheUpserts.WithLabelValues("upstream_error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Int("anime_id", id).Msg("Cache refresh skipped")
		return
	}
	rec := models.CacheRecordFromItem(item)
	if err := w.cache.Upsert(ctx, &rec); err != nil {
		metrics.CacheUpserts.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Error().Err(err).Int("anime_id", id).Msg("Cache upsert failed")
		return
	}
	metrics.CacheUpserts.WithLabelValues("ok").Inc()
}

// String names the service in supervisor logs.
func (w *CacheWarmer) String() string { return "cache-warmer" }
