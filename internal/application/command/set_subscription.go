package command

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
)

// SetSubscriptionCommand turns daily delivery on or off for a learner.
// Backing operation for /subscribe and /unsubscribe.
type SetSubscriptionCommand struct {
	TelegramID learner.TelegramID
	Active     bool
}

// SetSubscriptionHandler handles the SetSubscriptionCommand.
type SetSubscriptionHandler struct {
	learners learner.Repository
	events   EventPublisher
}

// NewSetSubscriptionHandler creates a new SetSubscriptionHandler.
func NewSetSubscriptionHandler(learners learner.Repository, events EventPublisher) *SetSubscriptionHandler {
	if events == nil {
		events = NoopPublisher()
	}
	return &SetSubscriptionHandler{
		learners: learners,
		events:   events,
	}
}

// Handle executes the subscription change.
func (h *SetSubscriptionHandler) Handle(ctx context.Context, cmd SetSubscriptionCommand) (*learner.Learner, error) {
	l, err := h.learners.GetByTelegramID(ctx, cmd.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("set_subscription: %w", err)
	}

	if l.IsActive == cmd.Active {
		return l, nil
	}

	if cmd.Active {
		l.Subscribe()
	} else {
		l.Unsubscribe()
	}

	if err := h.learners.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("set_subscription: save: %w", err)
	}

	h.events.Publish(ctx, learner.NewSubscriptionChangedEvent(l))

	return l, nil
}
