// Package handler contains Telegram command handlers. Each handler takes a
// parsed request, calls into the application layer, and returns the
// message to send; the bot adapts routing contexts to these requests.
package handler

import (
	"context"
	"fmt"
	"html"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/infrastructure/external/telegram"
)

// Response is the message a handler wants sent back to the chat.
type Response struct {
	// Text is the HTML-formatted message text.
	Text string

	// Keyboard is an optional inline keyboard.
	Keyboard *telegram.InlineKeyboardMarkup
}

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// Handles /start: registers a new learner with default preferences, or
// reactivates a returning one.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles the /start command.
type StartHandler struct {
	register *command.RegisterLearnerHandler
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(register *command.RegisterLearnerHandler) *StartHandler {
	return &StartHandler{register: register}
}

// StartRequest contains the parsed /start command data.
type StartRequest struct {
	TelegramID int64
	FirstName  string
	Username   string
}

// Handle processes the /start command.
func (h *StartHandler) Handle(ctx context.Context, req StartRequest) (*Response, error) {
	result, err := h.register.Handle(ctx, command.RegisterLearnerCommand{
		TelegramID: learner.TelegramID(req.TelegramID),
		FirstName:  req.FirstName,
		Username:   req.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	if result.Created {
		return &Response{Text: h.welcomeText(result.Learner)}, nil
	}
	return &Response{Text: h.welcomeBackText(result.Learner)}, nil
}

func (h *StartHandler) welcomeText(l *learner.Learner) string {
	return fmt.Sprintf(
		"👋 <b>Welcome, %s!</b>\n\n"+
			"Every weekday at <b>%s</b> (%s) you'll get a short TOEIC lesson: "+
			"vocabulary, a grammar tip, and a few practice questions.\n\n"+
			"Answer the questions with the buttons and I'll track your accuracy, "+
			"estimated score, and streak.\n\n"+
			"• /stats — your progress\n"+
			"• /settings — change delivery time, timezone, difficulty, or target\n"+
			"• /unsubscribe — pause lessons any time",
		html.EscapeString(l.FirstName),
		l.Preferences.DeliveryTime,
		html.EscapeString(l.Preferences.Timezone),
	)
}

func (h *StartHandler) welcomeBackText(l *learner.Learner) string {
	return fmt.Sprintf(
		"👋 <b>Welcome back, %s!</b>\n\n"+
			"Your daily lessons are on. Next one arrives at <b>%s</b> (%s).\n\n"+
			"Check /stats to see where you left off.",
		html.EscapeString(l.FirstName),
		l.Preferences.DeliveryTime,
		html.EscapeString(l.Preferences.Timezone),
	)
}
