package progress

import (
	"context"
	"time"
)

// Repository defines the persistence contract for daily progress rows.
type Repository interface {
	// Upsert inserts or replaces the row for (learner, date).
	Upsert(ctx context.Context, p *DailyProgress) error

	// GetByLearnerAndDate returns the row for a specific day.
	// Returns ErrProgressNotFound if nothing was recorded.
	GetByLearnerAndDate(ctx context.Context, learnerID string, day time.Time) (*DailyProgress, error)

	// ListByLearner returns the most recent rows, newest first.
	ListByLearner(ctx context.Context, learnerID string, limit int) ([]*DailyProgress, error)

	// ListByLearnerSince returns rows with date >= since, oldest first.
	ListByLearnerSince(ctx context.Context, learnerID string, since time.Time) ([]*DailyProgress, error)
}
