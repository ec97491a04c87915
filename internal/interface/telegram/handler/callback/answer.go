// Package callback contains handlers for inline keyboard callbacks.
package callback

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER CALLBACK
// Handles "ans:<question_id>:<choice>" button presses: grades the answer,
// stores it, and replies with feedback plus the refreshed daily numbers.
// ══════════════════════════════════════════════════════════════════════════════

// AnswerHandler handles answer button callbacks.
type AnswerHandler struct {
	learners     learner.Repository
	recordAnswer *command.RecordAnswerHandler
	feedback     *presenter.FeedbackPresenter
}

// NewAnswerHandler creates a new AnswerHandler.
func NewAnswerHandler(
	learners learner.Repository,
	recordAnswer *command.RecordAnswerHandler,
	feedback *presenter.FeedbackPresenter,
) *AnswerHandler {
	return &AnswerHandler{
		learners:     learners,
		recordAnswer: recordAnswer,
		feedback:     feedback,
	}
}

// AnswerRequest contains one parsed answer callback.
type AnswerRequest struct {
	TelegramID int64
	QuestionID string
	Choice     string

	// TimeTakenSeconds is how long the learner took to answer; zero
	// when unknown.
	TimeTakenSeconds int
}

// AnswerResponse contains the feedback to send.
type AnswerResponse struct {
	// Text is the HTML feedback message.
	Text string

	// Toast is the short text shown on the callback query itself.
	Toast string
}

// Handle grades and records one answer.
func (h *AnswerHandler) Handle(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	l, err := h.learners.GetByTelegramID(ctx, learner.TelegramID(req.TelegramID))
	if err != nil {
		if shared.IsNotFound(err) {
			return &AnswerResponse{
				Text:  "❌ <b>You're not registered yet</b>\n\nUse /start to begin daily practice.",
				Toast: "Not registered",
			}, nil
		}
		return nil, fmt.Errorf("answer callback: %w", err)
	}

	result, err := h.recordAnswer.Handle(ctx, command.RecordAnswerCommand{
		LearnerID:        l.ID,
		QuestionID:       req.QuestionID,
		Answer:           req.Choice,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		if shared.IsNotFound(err) {
			// Question purged or the button outlived its lesson.
			return &AnswerResponse{
				Text:  "⚠️ That question is no longer available. A fresh one arrives with your next lesson.",
				Toast: "Question expired",
			}, nil
		}
		if shared.IsValidation(err) {
			return &AnswerResponse{Toast: "Invalid answer"}, nil
		}
		return nil, fmt.Errorf("answer callback: %w", err)
	}

	return &AnswerResponse{
		Text:  h.feedback.Render(result),
		Toast: h.feedback.Toast(result.IsCorrect),
	}, nil
}
