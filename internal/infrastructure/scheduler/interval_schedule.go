package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval.
// It implements the Schedule interface.
type IntervalSchedule struct {
	interval time.Duration
}

// Every creates a schedule that fires at the given fixed interval.
// Intervals below one minute are rounded up to one minute to match the
// scheduler's minute-aligned tick.
func Every(interval time.Duration) *IntervalSchedule {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &IntervalSchedule{interval: interval}
}

// Next returns the next run time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval).Truncate(time.Minute)
}

// String returns a human-readable representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}
