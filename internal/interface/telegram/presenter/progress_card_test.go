package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
)

func testLearner() *learner.Learner {
	l, _ := learner.NewLearner("l1", 100, "Mina", "mina_k")
	return l
}

func TestProgressCard_NoActivityToday(t *testing.T) {
	p := NewProgressCardPresenter()

	text := p.Render(testLearner(), nil, 0, nil)

	assert.Contains(t, text, "Mina")
	assert.Contains(t, text, "No questions answered yet today")
	assert.Contains(t, text, "<b>600</b>")
	assert.Contains(t, text, "<b>800</b>")
	assert.NotContains(t, text, "Streak")
}

func TestProgressCard_NoRowTodayStillShowsHistory(t *testing.T) {
	p := NewProgressCardPresenter()

	weakAreas := []progress.WeakArea{
		{Category: "listening", AccuracyPct: 45.0, Days: 4},
	}

	text := p.Render(testLearner(), nil, 3, weakAreas)

	assert.Contains(t, text, "No questions answered yet today")
	assert.Contains(t, text, "Streak: <b>3</b> days")
	assert.Contains(t, text, "1. Listening — 45.0%")
}

func TestProgressCard_WithTodayRow(t *testing.T) {
	p := NewProgressCardPresenter()

	today := &progress.DailyProgress{
		QuestionsAttempted: 3,
		QuestionsCorrect:   2,
		AccuracyPct:        66.7,
		EstimatedScore:     567,
	}
	weakAreas := []progress.WeakArea{
		{Category: "grammar", AccuracyPct: 40.0, Days: 5},
		{Category: "reading", AccuracyPct: 62.5, Days: 3},
	}

	text := p.Render(testLearner(), today, 4, weakAreas)

	assert.Contains(t, text, "Answered: 3")
	assert.Contains(t, text, "Accuracy: 66.7%")
	assert.Contains(t, text, "<b>567</b>")
	assert.Contains(t, text, "Streak: <b>4</b> days")
	assert.Contains(t, text, "1. Grammar — 40.0%")
	assert.Contains(t, text, "2. Reading — 62.5%")
}

func TestProgressCard_SingleDayStreakUsesSingular(t *testing.T) {
	p := NewProgressCardPresenter()

	today := &progress.DailyProgress{
		QuestionsAttempted: 1,
		QuestionsCorrect:   1,
		AccuracyPct:        100.0,
		EstimatedScore:     900,
	}

	text := p.Render(testLearner(), today, 1, nil)
	assert.Contains(t, text, "Streak: <b>1</b> day\n")
}

func TestProgressCard_EscapesHTMLInNames(t *testing.T) {
	p := NewProgressCardPresenter()

	l := testLearner()
	l.FirstName = "<script>"

	text := p.Render(l, nil, 0, nil)
	assert.NotContains(t, text, "<script>")
	assert.Contains(t, text, "&lt;script&gt;")
}
