// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// IDGenerator produces unique identifiers for new records.
type IDGenerator interface {
	GenerateID() string
}

// EventPublisher publishes domain events to interested handlers.
// Publishing is fire-and-forget; command handlers never fail because a
// subscriber did.
type EventPublisher interface {
	Publish(ctx context.Context, event shared.Event)
}

// ProgressCache invalidates cached progress snapshots after a recompute.
type ProgressCache interface {
	Invalidate(ctx context.Context, learnerID string) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// noopPublisher is used when no event bus is wired.
type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, event shared.Event) {}

// NoopPublisher returns a publisher that drops all events.
func NoopPublisher() EventPublisher {
	return noopPublisher{}
}
