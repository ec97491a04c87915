package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(0, 0))
	assert.Equal(t, 100.0, Accuracy(5, 5))
	assert.Equal(t, 66.7, Accuracy(2, 3))
	assert.Equal(t, 33.3, Accuracy(1, 3))
	assert.Equal(t, 50.0, Accuracy(1, 2))
}

func TestEstimateScore_Anchors(t *testing.T) {
	assert.Equal(t, learner.Score(850), EstimateScore(95))
	assert.Equal(t, learner.Score(750), EstimateScore(85))
	assert.Equal(t, learner.Score(650), EstimateScore(75))
	assert.Equal(t, learner.Score(550), EstimateScore(65))
	assert.Equal(t, learner.Score(483), EstimateScore(50))
}

func TestEstimateScore_ContinuousAtSegmentBoundaries(t *testing.T) {
	// The piecewise segments must join without jumps.
	assert.Equal(t, learner.Score(500), EstimateScore(60))
	assert.Equal(t, learner.Score(600), EstimateScore(70))
	assert.Equal(t, learner.Score(700), EstimateScore(80))
	assert.Equal(t, learner.Score(800), EstimateScore(90))

	// Just below each boundary the estimate stays within one point.
	// The bottom segment (slope 1.67) crosses 500 at 59.88%.
	assert.Equal(t, learner.Score(500), EstimateScore(59.9))
	assert.Equal(t, learner.Score(599), EstimateScore(69.9))
	assert.Equal(t, learner.Score(699), EstimateScore(79.9))
	assert.Equal(t, learner.Score(799), EstimateScore(89.9))
}

func TestEstimateScore_TwoOfThreeCorrect(t *testing.T) {
	acc := Accuracy(2, 3)
	assert.Equal(t, 66.7, acc)
	assert.Equal(t, learner.Score(567), EstimateScore(acc))
}

func TestEstimateScore_Extremes(t *testing.T) {
	assert.Equal(t, learner.Score(400), EstimateScore(0))
	assert.Equal(t, learner.Score(900), EstimateScore(100))
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

// rowWith builds a daily row with per-category accuracies for ranking
// tests. A missing key leaves that category's accuracy nil.
func rowWith(date string, attempted int, accuracies map[string]float64) *DailyProgress {
	p := NewDailyProgress("p-"+date, "l1", day(date))
	p.QuestionsAttempted = attempted
	for category, pct := range accuracies {
		p.SetAccuracyFor(category, pct)
	}
	return p
}

func TestRankWeakAreas_AscendingByAverageAccuracy(t *testing.T) {
	rows := []*DailyProgress{
		rowWith("2025-06-10", 5, map[string]float64{"grammar": 90, "listening": 20, "vocabulary": 60}),
		rowWith("2025-06-11", 5, map[string]float64{"grammar": 90, "listening": 40, "vocabulary": 60}),
	}

	areas := RankWeakAreas(rows)

	assert.Len(t, areas, 3, "categories with no data in any row are dropped")
	assert.Equal(t, "listening", areas[0].Category)
	assert.Equal(t, "vocabulary", areas[1].Category)
	assert.Equal(t, "grammar", areas[2].Category)
	assert.Equal(t, 30.0, areas[0].AccuracyPct)
	assert.Equal(t, 2, areas[0].Days)
}

func TestRankWeakAreas_AveragesPerDayNotPerResponse(t *testing.T) {
	// A 100% day and an 11.1% day average to 55.6 regardless of how many
	// responses each day carried.
	rows := []*DailyProgress{
		rowWith("2025-06-10", 1, map[string]float64{"grammar": 100}),
		rowWith("2025-06-11", 9, map[string]float64{"grammar": 11.1}),
	}

	areas := RankWeakAreas(rows)

	assert.Len(t, areas, 1)
	assert.Equal(t, "grammar", areas[0].Category)
	assert.Equal(t, 55.6, areas[0].AccuracyPct)
}

func TestRankWeakAreas_SkipsDaysWithoutCategoryData(t *testing.T) {
	rows := []*DailyProgress{
		rowWith("2025-06-09", 3, map[string]float64{"grammar": 50}),
		rowWith("2025-06-10", 3, map[string]float64{"listening": 80}),
		rowWith("2025-06-11", 3, map[string]float64{"grammar": 70, "listening": 40}),
	}

	areas := RankWeakAreas(rows)

	byCat := map[string]WeakArea{}
	for _, a := range areas {
		byCat[a.Category] = a
	}
	assert.Equal(t, 60.0, byCat["grammar"].AccuracyPct)
	assert.Equal(t, 2, byCat["grammar"].Days)
	assert.Equal(t, 60.0, byCat["listening"].AccuracyPct)
	assert.Equal(t, 2, byCat["listening"].Days)
}

func TestRankWeakAreas_TiesKeepFirstSeenOrder(t *testing.T) {
	rows := []*DailyProgress{
		rowWith("2025-06-11", 4, map[string]float64{"vocabulary": 50, "grammar": 50, "listening": 50}),
	}

	areas := RankWeakAreas(rows)

	assert.Equal(t, "listening", areas[0].Category)
	assert.Equal(t, "grammar", areas[1].Category)
	assert.Equal(t, "vocabulary", areas[2].Category)
}

func TestWindowRows_ExcludesRowsOutsideLookback(t *testing.T) {
	today := day("2025-06-11")
	rows := []*DailyProgress{
		rowWith("2024-08-15", 5, map[string]float64{"grammar": 100}), // ~300 days old
		rowWith("2025-06-05", 5, map[string]float64{"grammar": 40}),  // oldest day inside the window
		rowWith("2025-06-04", 5, map[string]float64{"grammar": 10}),  // one day too old
		rowWith("2025-06-11", 5, map[string]float64{"grammar": 60}),
	}

	window := WindowRows(rows, today)

	assert.Len(t, window, 2)
	for _, row := range window {
		assert.False(t, row.Date.Before(day("2025-06-05")))
	}
}

func TestActiveDates_OnlyDaysWithAttempts(t *testing.T) {
	rows := []*DailyProgress{
		rowWith("2025-06-10", 5, nil),
		rowWith("2025-06-11", 0, nil),
	}

	dates := ActiveDates(rows)

	assert.Equal(t, []time.Time{day("2025-06-10")}, dates)
}

func TestStreakDays_ConsecutiveDays(t *testing.T) {
	today := day("2025-06-11")
	active := []time.Time{day("2025-06-11"), day("2025-06-10"), day("2025-06-09")}

	assert.Equal(t, 3, StreakDays(active, today))
}

func TestStreakDays_NoActivityTodayBreaksStreak(t *testing.T) {
	// Three consecutive active days do not count until today has
	// activity too: the streak resets the moment a day is skipped.
	today := day("2025-06-11")
	active := []time.Time{day("2025-06-10"), day("2025-06-09"), day("2025-06-08")}

	assert.Equal(t, 0, StreakDays(active, today))
}

func TestStreakDays_GapBreaksStreak(t *testing.T) {
	today := day("2025-06-11")
	active := []time.Time{day("2025-06-11"), day("2025-06-09"), day("2025-06-08")}

	assert.Equal(t, 1, StreakDays(active, today))
}

func TestStreakDays_NoActivity(t *testing.T) {
	assert.Equal(t, 0, StreakDays(nil, day("2025-06-11")))
}

func TestStreakDays_CappedAtLookback(t *testing.T) {
	today := day("2025-06-11")
	active := make([]time.Time, 0, 400)
	for i := 0; i < 400; i++ {
		active = append(active, today.AddDate(0, 0, -i))
	}

	assert.Equal(t, MaxStreakLookbackDays, StreakDays(active, today))
}

func TestRebuild_IdleDayKeepsFallbackScore(t *testing.T) {
	p := Rebuild("p1", "l1", day("2025-06-11"), 0, 0, 620, nil, nil, nil)

	assert.Equal(t, 0, p.QuestionsAttempted)
	assert.Equal(t, 0.0, p.AccuracyPct)
	assert.Equal(t, learner.Score(620), p.EstimatedScore)
	assert.Equal(t, 0, p.StreakDays)
	assert.Nil(t, p.GrammarAccuracy)
}

func TestRebuild_EndToEnd(t *testing.T) {
	stats := []response.CategoryStat{
		{Category: "grammar", Attempted: 2, Correct: 2},
		{Category: "listening", Attempted: 1, Correct: 0},
	}
	active := []time.Time{day("2025-06-11")}

	p := Rebuild("p1", "l1", day("2025-06-11"), 3, 2, 600, stats, nil, active)

	assert.Equal(t, 3, p.QuestionsAttempted)
	assert.Equal(t, 2, p.QuestionsCorrect)
	assert.Equal(t, 66.7, p.AccuracyPct)
	assert.Equal(t, learner.Score(567), p.EstimatedScore)
	assert.Equal(t, 1, p.StreakDays)

	require.NotNil(t, p.GrammarAccuracy)
	assert.Equal(t, 100.0, *p.GrammarAccuracy)
	require.NotNil(t, p.ListeningAccuracy)
	assert.Equal(t, 0.0, *p.ListeningAccuracy)
	assert.Nil(t, p.VocabularyAccuracy)

	assert.Equal(t, "listening", p.WeakAreas[0].Category)
}

func TestRebuild_WeakAreasUseLookbackWindow(t *testing.T) {
	today := day("2025-06-11")
	history := []*DailyProgress{
		rowWith("2024-08-15", 9, map[string]float64{"grammar": 5}),   // far outside the window
		rowWith("2025-06-10", 1, map[string]float64{"grammar": 100}), // inside
		rowWith("2025-06-11", 4, map[string]float64{"grammar": 99}),  // stale today row, replaced
	}
	stats := []response.CategoryStat{
		{Category: "grammar", Attempted: 9, Correct: 1},
	}

	p := Rebuild("p1", "l1", today, 9, 1, 600, stats, history, []time.Time{today})

	// Today's fresh 11.1% and yesterday's 100% average to 55.6; the
	// 300-day-old row and the stale stored today row contribute nothing.
	assert.Len(t, p.WeakAreas, 1)
	assert.Equal(t, "grammar", p.WeakAreas[0].Category)
	assert.Equal(t, 55.6, p.WeakAreas[0].AccuracyPct)
	assert.Equal(t, 2, p.WeakAreas[0].Days)
}
