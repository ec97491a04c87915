package handler

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS HANDLER
// Handles /settings. Without arguments it shows current preferences;
// with arguments it updates one of them:
//
//	/settings time 08:30
//	/settings tz Asia/Tokyo
//	/settings level advanced
//	/settings target 850
// ══════════════════════════════════════════════════════════════════════════════

// SettingsHandler handles the /settings command.
type SettingsHandler struct {
	learners    learner.Repository
	updatePrefs *command.UpdatePreferencesHandler
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(learners learner.Repository, updatePrefs *command.UpdatePreferencesHandler) *SettingsHandler {
	return &SettingsHandler{
		learners:    learners,
		updatePrefs: updatePrefs,
	}
}

// SettingsRequest contains the parsed /settings command data.
type SettingsRequest struct {
	TelegramID int64

	// Args is the raw text after the command.
	Args string
}

// Handle processes the /settings command.
func (h *SettingsHandler) Handle(ctx context.Context, req SettingsRequest) (*Response, error) {
	l, err := h.learners.GetByTelegramID(ctx, learner.TelegramID(req.TelegramID))
	if err != nil {
		if shared.IsNotFound(err) {
			return notRegisteredResponse(), nil
		}
		return nil, fmt.Errorf("settings: %w", err)
	}

	args := strings.Fields(req.Args)
	if len(args) == 0 {
		return &Response{Text: h.settingsView(l)}, nil
	}
	if len(args) < 2 {
		return h.usageResponse(), nil
	}

	updates, err := h.parseUpdate(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return &Response{Text: "⚠️ " + html.EscapeString(err.Error()) + "\n\n" + h.usageText()}, nil
	}

	result, err := h.updatePrefs.Handle(ctx, command.UpdatePreferencesCommand{
		LearnerID: l.ID,
		Updates:   updates,
	})
	if err != nil {
		if shared.IsValidation(err) {
			return &Response{Text: "⚠️ That value is not valid.\n\n" + h.usageText()}, nil
		}
		return nil, fmt.Errorf("settings: %w", err)
	}

	l.Preferences = result.UpdatedPreferences
	text := "✅ <b>Settings updated</b>\n\n" + h.settingsView(l)
	return &Response{Text: text}, nil
}

// parseUpdate maps a key/value pair to a preference update set.
func (h *SettingsHandler) parseUpdate(key, value string) (command.PreferenceUpdates, error) {
	var updates command.PreferenceUpdates

	switch strings.ToLower(key) {
	case "time":
		t := learner.DeliveryTime(value)
		updates.DeliveryTime = &t
	case "tz", "timezone":
		updates.Timezone = &value
	case "level", "difficulty":
		d := learner.Difficulty(strings.ToLower(value))
		updates.Difficulty = &d
	case "target":
		n, err := strconv.Atoi(value)
		if err != nil {
			return updates, fmt.Errorf("target score must be a number, got %q", value)
		}
		s := learner.Score(n)
		updates.TargetScore = &s
	default:
		return updates, fmt.Errorf("unknown setting %q", key)
	}

	return updates, nil
}

func (h *SettingsHandler) settingsView(l *learner.Learner) string {
	var sb strings.Builder

	sb.WriteString("⚙️ <b>Your settings</b>\n\n")
	sb.WriteString(fmt.Sprintf("🕖 Delivery time: <b>%s</b>\n", l.Preferences.DeliveryTime))
	sb.WriteString(fmt.Sprintf("🌍 Timezone: <b>%s</b>\n", html.EscapeString(l.Preferences.Timezone)))
	sb.WriteString(fmt.Sprintf("📚 Difficulty: <b>%s</b>\n", l.Preferences.Difficulty))
	sb.WriteString(fmt.Sprintf("🎯 Target score: <b>%d</b>\n\n", int(l.Preferences.TargetScore)))

	status := "✅ subscribed"
	if !l.IsActive {
		status = "⏸ paused (use /subscribe to resume)"
	}
	sb.WriteString("📬 Daily lessons: " + status + "\n\n")
	sb.WriteString("<i>" + h.usageText() + "</i>")

	return sb.String()
}

func (h *SettingsHandler) usageResponse() *Response {
	return &Response{Text: "⚠️ <b>Missing value</b>\n\n" + h.usageText()}
}

func (h *SettingsHandler) usageText() string {
	return "To change a setting:\n" +
		"• /settings time 08:30\n" +
		"• /settings tz Asia/Tokyo\n" +
		"• /settings level beginner|intermediate|advanced\n" +
		"• /settings target 850"
}
