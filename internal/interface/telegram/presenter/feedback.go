package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER FEEDBACK
// Renders the reply to a graded answer: verdict, correct choice,
// explanation, and the refreshed daily numbers.
// ══════════════════════════════════════════════════════════════════════════════

// FeedbackPresenter renders answer grading feedback.
type FeedbackPresenter struct{}

// NewFeedbackPresenter creates a new FeedbackPresenter.
func NewFeedbackPresenter() *FeedbackPresenter {
	return &FeedbackPresenter{}
}

// Render builds the HTML feedback message for a recorded answer.
func (p *FeedbackPresenter) Render(result *command.RecordAnswerResult) string {
	var sb strings.Builder

	if result.IsCorrect {
		sb.WriteString("✅ <b>Correct!</b>\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("❌ <b>Not quite.</b> The answer is <b>%s</b>.\n\n", result.CorrectChoice))
	}

	if result.Explanation != "" {
		sb.WriteString(fmt.Sprintf("💡 %s\n\n", html.EscapeString(result.Explanation)))
	}

	if result.Progress != nil {
		sb.WriteString(fmt.Sprintf("📊 Today: %d/%d correct (%.1f%%) • Estimate: <b>%d</b> • Streak: %d\n",
			result.Progress.QuestionsCorrect,
			result.Progress.QuestionsAttempted,
			result.Progress.AccuracyPct,
			int(result.Progress.EstimatedScore),
			result.Progress.StreakDays,
		))
	}

	return sb.String()
}

// Toast builds the short callback toast shown on the question message.
func (p *FeedbackPresenter) Toast(isCorrect bool) string {
	if isCorrect {
		return "✅ Correct!"
	}
	return "❌ Incorrect"
}
