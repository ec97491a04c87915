// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SUMMARY QUERY
// Backing operation for /stats: today's aggregates plus learner identity.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache is a read-through cache for today's progress rows.
type SnapshotCache interface {
	Get(ctx context.Context, learnerID string) (*progress.DailyProgress, bool)
	Set(ctx context.Context, row *progress.DailyProgress) error
}

// ProgressSummary is the read model returned to the interface layer.
type ProgressSummary struct {
	Learner *learner.Learner

	// Today is today's progress row; nil when nothing was recorded yet.
	Today *progress.DailyProgress

	// StreakDays and WeakAreas are computed from stored history, so
	// they are meaningful even before the first answer of the day.
	StreakDays int
	WeakAreas  []progress.WeakArea
}

// GetProgressSummaryHandler handles the progress summary query.
type GetProgressSummaryHandler struct {
	learners learner.Repository
	rows     progress.Repository
	cache    SnapshotCache // optional

	// now is swappable in tests.
	now func() time.Time
}

// NewGetProgressSummaryHandler creates a new GetProgressSummaryHandler.
func NewGetProgressSummaryHandler(
	learners learner.Repository,
	rows progress.Repository,
	cache SnapshotCache,
) *GetProgressSummaryHandler {
	return &GetProgressSummaryHandler{
		learners: learners,
		rows:     rows,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle loads the summary for a learner by Telegram ID.
//
// The streak and weak-area ranking come from stored history, so a
// learner who has not answered anything today still sees them.
func (h *GetProgressSummaryHandler) Handle(ctx context.Context, telegramID learner.TelegramID) (*ProgressSummary, error) {
	l, err := h.learners.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get_progress_summary: %w", err)
	}

	today := progress.DayOf(h.now())

	var row *progress.DailyProgress
	cached := false
	if h.cache != nil {
		row, cached = h.cache.Get(ctx, l.ID)
	}
	if !cached {
		row, err = h.rows.GetByLearnerAndDate(ctx, l.ID, today)
		if err != nil {
			if !shared.IsNotFound(err) {
				return nil, fmt.Errorf("get_progress_summary: %w", err)
			}
			row = nil
		} else if h.cache != nil {
			_ = h.cache.Set(ctx, row)
		}
	}

	history, err := h.rows.ListByLearner(ctx, l.ID, progress.MaxStreakLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("get_progress_summary: history: %w", err)
	}

	return &ProgressSummary{
		Learner:    l,
		Today:      row,
		StreakDays: progress.StreakDays(progress.ActiveDates(history), today),
		WeakAreas:  progress.RankWeakAreas(progress.WindowRows(history, today)),
	}, nil
}
