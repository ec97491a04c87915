// Package progress contains the daily progress aggregate and the pure
// analytics functions that rebuild it from response history.
package progress

import (
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
)

// WeakArea is one category's average per-day accuracy over the recent
// lookback window.
type WeakArea struct {
	Category    string  `json:"category"`
	AccuracyPct float64 `json:"accuracy_pct"`

	// Days is how many window days had responses in this category.
	Days int `json:"days"`
}

// DailyProgress is the per-learner, per-day analytics aggregate.
// It is always rebuilt from scratch out of the response history, so a
// recompute is idempotent: running it twice yields the same row.
type DailyProgress struct {
	// ID is the internal unique identifier (UUID).
	ID string

	// LearnerID references the learner.
	LearnerID string

	// Date is the day the row describes, truncated to UTC midnight.
	Date time.Time

	// QuestionsAttempted is the number of responses recorded that day.
	QuestionsAttempted int

	// QuestionsCorrect is the number of correct responses that day.
	QuestionsCorrect int

	// AccuracyPct is the day's accuracy in percent, one decimal place.
	AccuracyPct float64

	// EstimatedScore is the TOEIC estimate derived from the day's accuracy.
	EstimatedScore learner.Score

	// StreakDays is the consecutive-day activity streak as of this day.
	StreakDays int

	// Per-category accuracy for this day. Nil means the day had no
	// responses of that kind, which is different from 0% accuracy.
	ListeningAccuracy  *float64
	GrammarAccuracy    *float64
	VocabularyAccuracy *float64
	ReadingAccuracy    *float64

	// WeakAreas ranks categories by ascending average per-day accuracy
	// over the recent lookback window.
	WeakAreas []WeakArea

	UpdatedAt time.Time
}

// AccuracyFor returns the day's accuracy for one category, or nil when
// the day had no responses of that kind.
func (p *DailyProgress) AccuracyFor(category string) *float64 {
	switch category {
	case "listening":
		return p.ListeningAccuracy
	case "grammar":
		return p.GrammarAccuracy
	case "vocabulary":
		return p.VocabularyAccuracy
	case "reading":
		return p.ReadingAccuracy
	}
	return nil
}

// SetAccuracyFor records the day's accuracy for one category.
func (p *DailyProgress) SetAccuracyFor(category string, pct float64) {
	switch category {
	case "listening":
		p.ListeningAccuracy = &pct
	case "grammar":
		p.GrammarAccuracy = &pct
	case "vocabulary":
		p.VocabularyAccuracy = &pct
	case "reading":
		p.ReadingAccuracy = &pct
	}
}

// NewDailyProgress creates an empty aggregate for the given day.
func NewDailyProgress(id, learnerID string, day time.Time) *DailyProgress {
	return &DailyProgress{
		ID:        id,
		LearnerID: learnerID,
		Date:      DayOf(day),
		UpdatedAt: time.Now().UTC(),
	}
}

// DayOf truncates a time to UTC midnight.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
