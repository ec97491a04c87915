package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCache caches the latest daily progress row per learner. It backs
// the stats view (read side) and is invalidated by the recompute path
// (write side). The database stays the source of truth, so every cache
// failure degrades to a miss or a no-op rather than an error.
type ProgressCache struct {
	cache  *Cache
	logger *slog.Logger
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(cache *Cache, logger *slog.Logger) *ProgressCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressCache{
		cache:  cache,
		logger: logger.With(slog.String("component", "progress_cache")),
	}
}

// Get returns the cached snapshot for a learner, or false on a miss.
func (p *ProgressCache) Get(ctx context.Context, learnerID string) (*progress.DailyProgress, bool) {
	var row progress.DailyProgress
	if err := p.cache.Get(ctx, ProgressKey(learnerID), &row); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			p.logger.Warn("progress cache read failed",
				slog.String("learner_id", learnerID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return &row, true
}

// Set stores a snapshot for a learner.
func (p *ProgressCache) Set(ctx context.Context, row *progress.DailyProgress) error {
	if row == nil {
		return nil
	}
	return p.cache.Set(ctx, ProgressKey(row.LearnerID), row, TTLProgressSnapshot)
}

// Invalidate drops the snapshot for a learner.
func (p *ProgressCache) Invalidate(ctx context.Context, learnerID string) error {
	return p.cache.Delete(ctx, ProgressKey(learnerID))
}

// InvalidateAll drops every progress snapshot.
func (p *ProgressCache) InvalidateAll(ctx context.Context) error {
	return p.cache.DeleteByPattern(ctx, PrefixProgress+"*")
}
