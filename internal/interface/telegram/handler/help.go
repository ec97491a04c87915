package handler

import (
	"context"
)

// HelpHandler handles the /help command.
type HelpHandler struct{}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

// Handle returns the static help text.
func (h *HelpHandler) Handle(ctx context.Context) (*Response, error) {
	text := "📖 <b>How this bot works</b>\n\n" +
		"Every weekday at your chosen time you get a lesson:\n" +
		"greeting → vocabulary → grammar tip → questions → listening audio.\n\n" +
		"Answer questions with the A-D buttons. Every answer updates your " +
		"daily accuracy, TOEIC score estimate, and streak. Weak categories " +
		"get extra attention in the next lesson.\n\n" +
		"<b>Commands</b>\n" +
		"• /start — register and subscribe\n" +
		"• /stats — today's progress, estimate, streak, weak areas\n" +
		"• /settings — delivery time, timezone, difficulty, target score\n" +
		"• /subscribe — resume daily lessons\n" +
		"• /unsubscribe — pause daily lessons"

	return &Response{Text: text}, nil
}
