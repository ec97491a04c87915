// Package timeutil provides timezone-aware time helpers for daily lesson
// delivery. Learners live in different timezones, so unlike most of the
// persistence layer (which is UTC throughout), delivery decisions are made
// on the learner's local wall clock.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard wall-clock format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// LoadLocation resolves an IANA timezone name, falling back to UTC when
// the name is unknown. Delivery must never fail on a bad preference.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDayUTC returns 00:00:00 UTC of the given instant's UTC date.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDayIn returns local midnight of the instant in the given location.
func StartOfDayIn(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// IsWeekendIn checks whether the instant falls on Saturday or Sunday on
// the local wall clock of the given location.
func IsWeekendIn(t time.Time, loc *time.Location) bool {
	weekday := t.In(loc).Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// WallClock formats the instant as HH:MM on the local wall clock.
func WallClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(FormatTime)
}

// MatchesWallClock reports whether the instant's local HH:MM equals the
// given wall-clock string. Delivery runs on a minute tick, so an exact
// minute match is the due condition.
func MatchesWallClock(t time.Time, loc *time.Location, hhmm string) bool {
	return WallClock(t, loc) == hhmm
}

// IsSameDayUTC checks if two instants share a UTC date.
func IsSameDayUTC(t1, t2 time.Time) bool {
	a, b := t1.UTC(), t2.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetweenUTC returns the absolute number of whole UTC days between
// two instants.
func DaysBetweenUTC(t1, t2 time.Time) int {
	a := StartOfDayUTC(t1)
	b := StartOfDayUTC(t2)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// FormatDateStr formats an instant as a UTC date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// WeekdayName returns the English weekday name on the local wall clock.
// Used to theme the daily grammar tip.
func WeekdayName(t time.Time, loc *time.Location) string {
	return t.In(loc).Weekday().String()
}
