package question

import (
	"context"
)

// Repository defines the persistence contract for questions.
type Repository interface {
	// Create stores a new question.
	Create(ctx context.Context, q *Question) error

	// CreateBatch stores a set of questions in one transaction.
	CreateBatch(ctx context.Context, qs []*Question) error

	// GetByID returns a question by ID.
	// Returns ErrQuestionNotFound if no such question exists.
	GetByID(ctx context.Context, id string) (*Question, error)

	// IncrementUsedCount bumps the usage counter by one.
	// Returns ErrQuestionNotFound if no such question exists.
	IncrementUsedCount(ctx context.Context, id string) error

	// ListByCategory returns up to limit questions in a category,
	// least-used first.
	ListByCategory(ctx context.Context, category Category, limit int) ([]*Question, error)
}
