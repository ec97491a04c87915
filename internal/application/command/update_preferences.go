package command

import (
	"context"
	"fmt"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Updates the learner's study preferences. The update set is a closed
// struct: only the fields listed here can change, and nil means
// "don't change".
// ══════════════════════════════════════════════════════════════════════════════

// PreferenceUpdates contains optional preference updates.
type PreferenceUpdates struct {
	// TargetScore - the score the learner is working toward (10-990).
	TargetScore *learner.Score

	// Difficulty - requested lesson difficulty.
	Difficulty *learner.Difficulty

	// DeliveryTime - local delivery time, "HH:MM".
	DeliveryTime *learner.DeliveryTime

	// Timezone - IANA timezone name.
	Timezone *string
}

// UpdatePreferencesCommand contains the data to update preferences.
type UpdatePreferencesCommand struct {
	LearnerID string
	Updates   PreferenceUpdates
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("learner", "UpdatePreferences", shared.ErrInvalidID, "learner_id is required")
	}
	if c.Updates.TargetScore != nil && !c.Updates.TargetScore.IsValid() {
		return shared.ErrInvalidTargetScore
	}
	if c.Updates.Difficulty != nil && !c.Updates.Difficulty.IsValid() {
		return shared.ErrInvalidDifficulty
	}
	if c.Updates.DeliveryTime != nil && !c.Updates.DeliveryTime.IsValid() {
		return shared.ErrInvalidDeliveryTime
	}
	if c.Updates.Timezone != nil {
		if _, err := time.LoadLocation(*c.Updates.Timezone); err != nil {
			return shared.ErrInvalidTimezone
		}
	}
	return nil
}

// UpdatePreferencesResult contains the result of updating preferences.
type UpdatePreferencesResult struct {
	LearnerID string

	// UpdatedPreferences contains the final preference values.
	UpdatedPreferences learner.Preferences

	// ChangedFields lists which fields were changed.
	ChangedFields []string
}

// UpdatePreferencesHandler handles the UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	learners learner.Repository
	events   EventPublisher
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(learners learner.Repository, events EventPublisher) *UpdatePreferencesHandler {
	if events == nil {
		events = NoopPublisher()
	}
	return &UpdatePreferencesHandler{
		learners: learners,
		events:   events,
	}
}

// Handle executes the update preferences command.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_preferences: %w", err)
	}

	l, err := h.learners.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("update_preferences: %w", err)
	}

	changed := make([]string, 0, 4)
	prefs := l.Preferences

	if cmd.Updates.TargetScore != nil && *cmd.Updates.TargetScore != prefs.TargetScore {
		prefs.TargetScore = *cmd.Updates.TargetScore
		changed = append(changed, "target_score")
	}
	if cmd.Updates.Difficulty != nil && *cmd.Updates.Difficulty != prefs.Difficulty {
		prefs.Difficulty = *cmd.Updates.Difficulty
		changed = append(changed, "difficulty")
	}
	if cmd.Updates.DeliveryTime != nil && *cmd.Updates.DeliveryTime != prefs.DeliveryTime {
		prefs.DeliveryTime = *cmd.Updates.DeliveryTime
		changed = append(changed, "delivery_time")
	}
	if cmd.Updates.Timezone != nil && *cmd.Updates.Timezone != prefs.Timezone {
		prefs.Timezone = *cmd.Updates.Timezone
		changed = append(changed, "timezone")
	}

	if len(changed) > 0 {
		l.Preferences = prefs
		l.UpdatedAt = time.Now().UTC()
		if err := h.learners.Update(ctx, l); err != nil {
			return nil, fmt.Errorf("update_preferences: save: %w", err)
		}
		h.events.Publish(ctx, learner.NewPreferencesUpdatedEvent(l, changed))
	}

	return &UpdatePreferencesResult{
		LearnerID:          l.ID,
		UpdatedPreferences: l.Preferences,
		ChangedFields:      changed,
	}, nil
}
