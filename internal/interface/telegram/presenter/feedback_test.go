package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
)

func TestFeedback_CorrectAnswer(t *testing.T) {
	p := NewFeedbackPresenter()

	text := p.Render(&command.RecordAnswerResult{
		IsCorrect:     true,
		CorrectChoice: question.ChoiceB,
		Explanation:   "Past perfect marks the earlier of two past events.",
		Progress: &progress.DailyProgress{
			QuestionsAttempted: 2,
			QuestionsCorrect:   2,
			AccuracyPct:        100.0,
			EstimatedScore:     900,
			StreakDays:         3,
		},
	})

	assert.Contains(t, text, "Correct!")
	assert.Contains(t, text, "Past perfect")
	assert.Contains(t, text, "2/2 correct (100.0%)")
	assert.Contains(t, text, "Estimate: <b>900</b>")
}

func TestFeedback_IncorrectAnswerShowsCorrectChoice(t *testing.T) {
	p := NewFeedbackPresenter()

	text := p.Render(&command.RecordAnswerResult{
		IsCorrect:     false,
		CorrectChoice: question.ChoiceD,
	})

	assert.Contains(t, text, "Not quite")
	assert.Contains(t, text, "<b>D</b>")
}

func TestFeedback_Toast(t *testing.T) {
	p := NewFeedbackPresenter()

	assert.Equal(t, "✅ Correct!", p.Toast(true))
	assert.Equal(t, "❌ Incorrect", p.Toast(false))
}
