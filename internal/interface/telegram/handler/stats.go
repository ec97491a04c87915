package handler

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/query"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLER
// Handles /stats: today's aggregates, score estimate, streak, weak areas.
// ══════════════════════════════════════════════════════════════════════════════

// StatsHandler handles the /stats command.
type StatsHandler struct {
	summary *query.GetProgressSummaryHandler
	card    *presenter.ProgressCardPresenter
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(summary *query.GetProgressSummaryHandler, card *presenter.ProgressCardPresenter) *StatsHandler {
	return &StatsHandler{
		summary: summary,
		card:    card,
	}
}

// StatsRequest contains the parsed /stats command data.
type StatsRequest struct {
	TelegramID int64
}

// Handle processes the /stats command.
func (h *StatsHandler) Handle(ctx context.Context, req StatsRequest) (*Response, error) {
	summary, err := h.summary.Handle(ctx, learner.TelegramID(req.TelegramID))
	if err != nil {
		if shared.IsNotFound(err) {
			return notRegisteredResponse(), nil
		}
		return nil, fmt.Errorf("stats: %w", err)
	}

	return &Response{Text: h.card.Render(summary.Learner, summary.Today, summary.StreakDays, summary.WeakAreas)}, nil
}

// notRegisteredResponse is shared by handlers that need a learner to exist.
func notRegisteredResponse() *Response {
	return &Response{
		Text: "❌ <b>You're not registered yet</b>\n\nUse /start to begin daily practice.",
	}
}
