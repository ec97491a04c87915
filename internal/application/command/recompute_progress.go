package command

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PROGRESS COMMAND
// Rebuilds a learner's daily progress row from scratch out of the
// response history. Never applies deltas: the row is derived state, so
// recomputing is idempotent and self-healing.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeProgressHandler rebuilds and persists daily progress.
type RecomputeProgressHandler struct {
	learners  learner.Repository
	responses response.Repository
	rows      progress.Repository
	ids       IDGenerator
	cache     ProgressCache // optional
	events    EventPublisher
	clock     Clock
}

// NewRecomputeProgressHandler creates a new RecomputeProgressHandler.
func NewRecomputeProgressHandler(
	learners learner.Repository,
	responses response.Repository,
	rows progress.Repository,
	ids IDGenerator,
	cache ProgressCache,
	events EventPublisher,
	clock Clock,
) *RecomputeProgressHandler {
	if events == nil {
		events = NoopPublisher()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RecomputeProgressHandler{
		learners:  learners,
		responses: responses,
		rows:      rows,
		ids:       ids,
		cache:     cache,
		events:    events,
		clock:     clock,
	}
}

// Handle rebuilds the progress row for the given learner and the current day.
func (h *RecomputeProgressHandler) Handle(ctx context.Context, learnerID string) (*progress.DailyProgress, error) {
	l, err := h.learners.GetByID(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("recompute_progress: %w", err)
	}

	day := progress.DayOf(h.clock.Now())
	nextDay := day.AddDate(0, 0, 1)

	attempted, correct, err := h.responses.CountByLearnerBetween(ctx, l.ID, day, nextDay)
	if err != nil {
		return nil, fmt.Errorf("recompute_progress: count responses: %w", err)
	}

	stats, err := h.responses.CategoryStatsByLearnerBetween(ctx, l.ID, day, nextDay)
	if err != nil {
		return nil, fmt.Errorf("recompute_progress: category stats: %w", err)
	}

	activeDays, err := h.responses.ActiveDays(ctx, l.ID, day, progress.MaxStreakLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("recompute_progress: active days: %w", err)
	}

	windowStart := day.AddDate(0, 0, -(progress.WeakAreaWindowDays - 1))
	history, err := h.rows.ListByLearnerSince(ctx, l.ID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("recompute_progress: window rows: %w", err)
	}

	// Reuse the existing row ID so the upsert stays stable across reruns.
	rowID := h.ids.GenerateID()
	if existing, err := h.rows.GetByLearnerAndDate(ctx, l.ID, day); err == nil {
		rowID = existing.ID
	}

	row := progress.Rebuild(rowID, l.ID, day, attempted, correct, l.CurrentEstimatedScore, stats, history, activeDays)

	if err := h.rows.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("recompute_progress: upsert: %w", err)
	}

	if attempted > 0 && row.EstimatedScore != l.CurrentEstimatedScore {
		l.UpdateEstimatedScore(row.EstimatedScore)
		if err := h.learners.Update(ctx, l); err != nil {
			return nil, fmt.Errorf("recompute_progress: update estimate: %w", err)
		}
	}

	if h.cache != nil {
		// Cached snapshots carry a TTL, so a failed invalidation is not fatal.
		_ = h.cache.Invalidate(ctx, l.ID)
	}

	h.events.Publish(ctx, shared.NewBaseEvent(shared.EventProgressRecomputed, l.ID))

	return row, nil
}
