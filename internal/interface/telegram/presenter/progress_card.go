// Package presenter formats domain data into Telegram HTML messages.
package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CARD
// Renders the /stats view: today's aggregates, score estimate, streak,
// and the weak-area ranking.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCardPresenter renders progress summaries.
type ProgressCardPresenter struct{}

// NewProgressCardPresenter creates a new ProgressCardPresenter.
func NewProgressCardPresenter() *ProgressCardPresenter {
	return &ProgressCardPresenter{}
}

// Render builds the HTML progress card. today may be nil when the learner
// has not answered anything yet; the streak and weak areas come from
// stored history and render either way.
func (p *ProgressCardPresenter) Render(l *learner.Learner, today *progress.DailyProgress, streakDays int, weakAreas []progress.WeakArea) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📊 <b>Progress for %s</b>\n\n", html.EscapeString(l.FirstName)))

	if today == nil || today.QuestionsAttempted == 0 {
		sb.WriteString("No questions answered yet today.\n\n")
		sb.WriteString(fmt.Sprintf("🎯 Estimated score: <b>%d</b>\n", int(l.CurrentEstimatedScore)))
		sb.WriteString(fmt.Sprintf("🏁 Target score: <b>%d</b>\n\n", int(l.Preferences.TargetScore)))
	} else {
		sb.WriteString("📅 <b>Today</b>\n")
		sb.WriteString(fmt.Sprintf("   Answered: %d • Correct: %d • Accuracy: %.1f%%\n\n",
			today.QuestionsAttempted,
			today.QuestionsCorrect,
			today.AccuracyPct,
		))

		sb.WriteString(fmt.Sprintf("🎯 Estimated score: <b>%d</b>", int(today.EstimatedScore)))
		sb.WriteString(fmt.Sprintf(" / target %d\n\n", int(l.Preferences.TargetScore)))
	}

	if streakDays > 0 {
		sb.WriteString(fmt.Sprintf("🔥 Streak: <b>%d</b> %s\n\n", streakDays, pluralDays(streakDays)))
	}

	if len(weakAreas) > 0 {
		sb.WriteString("📉 <b>Weakest areas</b> (last 7 days)\n")
		for i, area := range weakAreas {
			if i >= 3 {
				break
			}
			sb.WriteString(fmt.Sprintf("   %d. %s — %.1f%% (%d active %s)\n",
				i+1,
				html.EscapeString(prettyCategory(area.Category)),
				area.AccuracyPct,
				area.Days,
				pluralDays(area.Days),
			))
		}
		sb.WriteString("\n")
	}

	if today == nil || today.QuestionsAttempted == 0 {
		sb.WriteString("<i>Your daily lesson arrives at " + string(l.Preferences.DeliveryTime) + ".</i>")
	} else {
		sb.WriteString("<i>Keep going. Tomorrow's lesson leans into your weak areas.</i>")
	}

	return sb.String()
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// prettyCategory turns a category slug into a display name.
func prettyCategory(category string) string {
	s := strings.ReplaceAll(category, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
