package query

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS HISTORY QUERY
// Recent daily rows for a learner, newest first. Backs the HTTP trend endpoint.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultHistoryLimit bounds how many daily rows a single request returns.
const DefaultHistoryLimit = 30

// MaxHistoryLimit is the hard cap regardless of what the caller asks for.
const MaxHistoryLimit = 365

// ProgressHistory is the read model for a learner's recent daily rows.
type ProgressHistory struct {
	Learner *learner.Learner
	Rows    []*progress.DailyProgress
}

// GetProgressHistoryHandler handles the progress history query.
type GetProgressHistoryHandler struct {
	learners learner.Repository
	rows     progress.Repository
}

// NewGetProgressHistoryHandler creates a new GetProgressHistoryHandler.
func NewGetProgressHistoryHandler(
	learners learner.Repository,
	rows progress.Repository,
) *GetProgressHistoryHandler {
	return &GetProgressHistoryHandler{
		learners: learners,
		rows:     rows,
	}
}

// Handle loads up to limit recent daily rows for a learner by Telegram ID.
// A non-positive limit falls back to DefaultHistoryLimit.
func (h *GetProgressHistoryHandler) Handle(ctx context.Context, telegramID learner.TelegramID, limit int) (*ProgressHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	l, err := h.learners.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get_progress_history: %w", err)
	}

	rows, err := h.rows.ListByLearner(ctx, l.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("get_progress_history: %w", err)
	}

	return &ProgressHistory{Learner: l, Rows: rows}, nil
}
