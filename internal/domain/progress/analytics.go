package progress

import (
	"math"
	"sort"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
)

// MaxStreakLookbackDays caps how far back the streak walk goes.
const MaxStreakLookbackDays = 365

// WeakAreaWindowDays is the lookback window for the weak-area ranking.
const WeakAreaWindowDays = 7

// weakAreaCategories fixes the first-seen order used for stable tie
// breaking in the ranking.
var weakAreaCategories = []string{"listening", "grammar", "vocabulary", "reading"}

// Accuracy returns correct/attempted as a percentage rounded to one
// decimal place. Zero attempts yield zero.
func Accuracy(correct, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(attempted)*1000) / 10
}

// EstimateScore maps an accuracy percentage onto the TOEIC scale using a
// piecewise-linear fit. The segments join continuously at 60/70/80/90:
//
//	90%+ -> 800-850+, 80%+ -> 700+, 70%+ -> 600+, 60%+ -> 500+,
//	below 60% the estimate decays toward 400.
//
// The result is truncated to a whole score.
func EstimateScore(accuracyPct float64) learner.Score {
	var est float64
	switch {
	case accuracyPct >= 90:
		est = 800 + (accuracyPct-90)*10
	case accuracyPct >= 80:
		est = 700 + (accuracyPct-80)*10
	case accuracyPct >= 70:
		est = 600 + (accuracyPct-70)*10
	case accuracyPct >= 60:
		est = 500 + (accuracyPct-60)*10
	default:
		est = 400 + accuracyPct*1.67
	}

	score := learner.Score(int(est))
	if score > learner.MaxScore {
		score = learner.MaxScore
	}
	if score < learner.MinScore {
		score = learner.MinScore
	}
	return score
}

// RankWeakAreas averages each category's per-day accuracy across the
// given daily rows and ranks the categories weakest first. Categories
// with no data in any row are dropped. Ties keep the first-seen
// category order (listening, grammar, vocabulary, reading).
func RankWeakAreas(rows []*DailyProgress) []WeakArea {
	areas := make([]WeakArea, 0, len(weakAreaCategories))
	for _, category := range weakAreaCategories {
		var sum float64
		var days int
		for _, row := range rows {
			if pct := row.AccuracyFor(category); pct != nil {
				sum += *pct
				days++
			}
		}
		if days == 0 {
			continue
		}
		areas = append(areas, WeakArea{
			Category:    category,
			AccuracyPct: math.Round(sum/float64(days)*10) / 10,
			Days:        days,
		})
	}

	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].AccuracyPct < areas[j].AccuracyPct
	})

	return areas
}

// WindowRows filters daily rows down to the weak-area lookback window
// ending at the given day.
func WindowRows(rows []*DailyProgress, day time.Time) []*DailyProgress {
	from := DayOf(day).AddDate(0, 0, -(WeakAreaWindowDays - 1))
	out := make([]*DailyProgress, 0, WeakAreaWindowDays)
	for _, row := range rows {
		if !row.Date.Before(from) && !row.Date.After(DayOf(day)) {
			out = append(out, row)
		}
	}
	return out
}

// ActiveDates extracts the dates of rows with at least one attempt, for
// feeding StreakDays from stored daily rows.
func ActiveDates(rows []*DailyProgress) []time.Time {
	days := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		if row.QuestionsAttempted > 0 {
			days = append(days, row.Date)
		}
	}
	return days
}

// StreakDays computes the consecutive-day activity streak ending at the
// given day. A day counts when it has at least one response; the first
// inactive day breaks the walk, so a learner who has not studied yet
// today has a streak of zero. The walk is capped at
// MaxStreakLookbackDays.
func StreakDays(activeDays []time.Time, today time.Time) int {
	active := make(map[time.Time]bool, len(activeDays))
	for _, d := range activeDays {
		active[DayOf(d)] = true
	}

	day := DayOf(today)
	streak := 0
	for i := 0; i < MaxStreakLookbackDays; i++ {
		if !active[day] {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Rebuild assembles a full DailyProgress row from raw inputs. The
// learner's current estimate is used as fallback when the day has no
// attempts, so an idle day never zeroes the score. todayStats carries
// the day's per-category counts; history carries recent daily rows for
// the weak-area window (the day being rebuilt is replaced by the fresh
// values, not read from history).
func Rebuild(
	id, learnerID string,
	day time.Time,
	attempted, correct int,
	fallback learner.Score,
	todayStats []response.CategoryStat,
	history []*DailyProgress,
	activeDays []time.Time,
) *DailyProgress {
	p := NewDailyProgress(id, learnerID, day)
	p.QuestionsAttempted = attempted
	p.QuestionsCorrect = correct
	p.AccuracyPct = Accuracy(correct, attempted)

	if attempted > 0 {
		p.EstimatedScore = EstimateScore(p.AccuracyPct)
	} else {
		p.EstimatedScore = fallback
	}

	for _, s := range todayStats {
		if s.Attempted == 0 {
			continue
		}
		p.SetAccuracyFor(s.Category, Accuracy(s.Correct, s.Attempted))
	}

	window := make([]*DailyProgress, 0, WeakAreaWindowDays)
	for _, row := range WindowRows(history, day) {
		if row.Date.Equal(p.Date) {
			continue
		}
		window = append(window, row)
	}
	window = append(window, p)

	p.WeakAreas = RankWeakAreas(window)
	p.StreakDays = StreakDays(activeDays, day)
	p.UpdatedAt = time.Now().UTC()
	return p
}
