package handler

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIBE HANDLER
// Handles /subscribe and /unsubscribe.
// ══════════════════════════════════════════════════════════════════════════════

// SubscribeHandler handles subscription toggling.
type SubscribeHandler struct {
	setSubscription *command.SetSubscriptionHandler
}

// NewSubscribeHandler creates a new SubscribeHandler.
func NewSubscribeHandler(setSubscription *command.SetSubscriptionHandler) *SubscribeHandler {
	return &SubscribeHandler{setSubscription: setSubscription}
}

// SubscribeRequest contains the parsed command data.
type SubscribeRequest struct {
	TelegramID int64

	// Active is true for /subscribe, false for /unsubscribe.
	Active bool
}

// Handle processes the subscription change.
func (h *SubscribeHandler) Handle(ctx context.Context, req SubscribeRequest) (*Response, error) {
	l, err := h.setSubscription.Handle(ctx, command.SetSubscriptionCommand{
		TelegramID: learner.TelegramID(req.TelegramID),
		Active:     req.Active,
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return notRegisteredResponse(), nil
		}
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	if req.Active {
		return &Response{Text: fmt.Sprintf(
			"✅ <b>Subscribed</b>\n\nYour next lesson arrives at <b>%s</b> (%s), weekdays only.",
			l.Preferences.DeliveryTime, l.Preferences.Timezone,
		)}, nil
	}

	return &Response{Text: "⏸ <b>Paused</b>\n\n" +
		"No more daily lessons until you /subscribe again. " +
		"Your progress and streak history stay saved."}, nil
}
