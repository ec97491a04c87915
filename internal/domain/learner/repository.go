package learner

import (
	"context"
)

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository defines the persistence contract for learners.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create stores a new learner.
	// Returns ErrLearnerAlreadyExists if the Telegram ID is already registered.
	Create(ctx context.Context, l *Learner) error

	// GetByID returns a learner by internal ID.
	// Returns ErrLearnerNotFound if no such learner exists.
	GetByID(ctx context.Context, id string) (*Learner, error)

	// GetByTelegramID returns a learner by Telegram ID.
	// Returns ErrLearnerNotFound if no such learner exists.
	GetByTelegramID(ctx context.Context, telegramID TelegramID) (*Learner, error)

	// Update persists changes to a learner.
	// Returns ErrLearnerNotFound if no such learner exists.
	Update(ctx context.Context, l *Learner) error

	// ListActive returns all learners currently subscribed to daily delivery.
	ListActive(ctx context.Context) ([]*Learner, error)

	// List returns learners with pagination.
	List(ctx context.Context, opts ListOptions) ([]*Learner, error)

	// Count returns the total number of learners.
	Count(ctx context.Context) (int, error)
}
