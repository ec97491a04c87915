package response

import (
	"context"
	"time"
)

// CategoryStat is an aggregate over responses joined with question categories.
type CategoryStat struct {
	Category  string
	Attempted int
	Correct   int
}

// Repository defines the persistence contract for responses.
type Repository interface {
	// Create stores a new response. Duplicates per (learner, question)
	// are allowed.
	Create(ctx context.Context, r *Response) error

	// ListByLearnerBetween returns a learner's responses in [from, to).
	ListByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]*Response, error)

	// CountByLearnerBetween returns attempted and correct counts in [from, to).
	CountByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) (attempted, correct int, err error)

	// CategoryStatsByLearnerBetween aggregates responses in [from, to)
	// per question category.
	CategoryStatsByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]CategoryStat, error)

	// ActiveDays returns the distinct UTC dates on which the learner
	// answered at least one question, newest first, at most limit days back
	// from the given day.
	ActiveDays(ctx context.Context, learnerID string, until time.Time, limit int) ([]time.Time, error)
}
