package command

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER LEARNER COMMAND
// Creates a learner with default preferences, or reactivates an existing
// one. Backing operation for /start.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterLearnerCommand contains the data to register a learner.
type RegisterLearnerCommand struct {
	TelegramID learner.TelegramID
	FirstName  string
	Username   string
}

// Validate validates the command.
func (c RegisterLearnerCommand) Validate() error {
	if !c.TelegramID.IsValid() {
		return shared.ErrInvalidTelegramID
	}
	return nil
}

// RegisterLearnerResult contains the result of registration.
type RegisterLearnerResult struct {
	Learner *learner.Learner

	// Created is false when the learner already existed.
	Created bool
}

// RegisterLearnerHandler handles the RegisterLearnerCommand.
type RegisterLearnerHandler struct {
	learners learner.Repository
	ids      IDGenerator
	events   EventPublisher
}

// NewRegisterLearnerHandler creates a new RegisterLearnerHandler.
func NewRegisterLearnerHandler(learners learner.Repository, ids IDGenerator, events EventPublisher) *RegisterLearnerHandler {
	if events == nil {
		events = NoopPublisher()
	}
	return &RegisterLearnerHandler{
		learners: learners,
		ids:      ids,
		events:   events,
	}
}

// Handle executes the registration.
func (h *RegisterLearnerHandler) Handle(ctx context.Context, cmd RegisterLearnerCommand) (*RegisterLearnerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	existing, err := h.learners.GetByTelegramID(ctx, cmd.TelegramID)
	if err == nil {
		// Returning learner: /start resubscribes rather than duplicating.
		wasInactive := !existing.IsActive
		if wasInactive {
			existing.Subscribe()
		}
		existing.Touch()
		if err := h.learners.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("register_learner: refresh: %w", err)
		}
		if wasInactive {
			h.events.Publish(ctx, learner.NewSubscriptionChangedEvent(existing))
		}
		return &RegisterLearnerResult{Learner: existing, Created: false}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("register_learner: lookup: %w", err)
	}

	l, err := learner.NewLearner(h.ids.GenerateID(), cmd.TelegramID, cmd.FirstName, cmd.Username)
	if err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	if err := h.learners.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("register_learner: create: %w", err)
	}

	h.events.Publish(ctx, learner.NewRegisteredEvent(l))

	return &RegisterLearnerResult{Learner: l, Created: true}, nil
}
