package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

func scorePtr(s learner.Score) *learner.Score                { return &s }
func diffPtr(d learner.Difficulty) *learner.Difficulty       { return &d }
func timePtr(t learner.DeliveryTime) *learner.DeliveryTime   { return &t }
func strPtr(s string) *string                                { return &s }

func TestUpdatePreferences_AppliesOnlyProvidedFields(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	handler := NewUpdatePreferencesHandler(env.learners, nil)

	res, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		LearnerID: l.ID,
		Updates: PreferenceUpdates{
			TargetScore:  scorePtr(900),
			DeliveryTime: timePtr("21:30"),
		},
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"target_score", "delivery_time"}, res.ChangedFields)
	assert.Equal(t, learner.Score(900), res.UpdatedPreferences.TargetScore)
	assert.Equal(t, learner.DeliveryTime("21:30"), res.UpdatedPreferences.DeliveryTime)

	// Untouched fields keep their defaults.
	assert.Equal(t, learner.DefaultDifficulty, res.UpdatedPreferences.Difficulty)
	assert.Equal(t, learner.DefaultTimezone, res.UpdatedPreferences.Timezone)
}

func TestUpdatePreferences_NoChanges(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	handler := NewUpdatePreferencesHandler(env.learners, nil)

	res, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		LearnerID: l.ID,
		Updates:   PreferenceUpdates{},
	})

	require.NoError(t, err)
	assert.Empty(t, res.ChangedFields)
}

func TestUpdatePreferences_SameValueIsNotAChange(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	handler := NewUpdatePreferencesHandler(env.learners, nil)

	res, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		LearnerID: l.ID,
		Updates: PreferenceUpdates{
			TargetScore: scorePtr(learner.DefaultTargetScore),
		},
	})

	require.NoError(t, err)
	assert.Empty(t, res.ChangedFields)
}

func TestUpdatePreferences_Validation(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	handler := NewUpdatePreferencesHandler(env.learners, nil)

	cases := []struct {
		name    string
		updates PreferenceUpdates
	}{
		{"target score too high", PreferenceUpdates{TargetScore: scorePtr(1000)}},
		{"target score too low", PreferenceUpdates{TargetScore: scorePtr(5)}},
		{"unknown difficulty", PreferenceUpdates{Difficulty: diffPtr("expert")}},
		{"bad delivery time", PreferenceUpdates{DeliveryTime: timePtr("25:00")}},
		{"bad delivery time format", PreferenceUpdates{DeliveryTime: timePtr("7am")}},
		{"unknown timezone", PreferenceUpdates{Timezone: strPtr("Mars/Olympus")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
				LearnerID: l.ID,
				Updates:   tc.updates,
			})
			assert.True(t, shared.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestUpdatePreferences_UnknownLearner(t *testing.T) {
	env := newTestEnv()
	handler := NewUpdatePreferencesHandler(env.learners, nil)

	_, err := handler.Handle(context.Background(), UpdatePreferencesCommand{
		LearnerID: "missing",
		Updates:   PreferenceUpdates{TargetScore: scorePtr(700)},
	})

	assert.True(t, shared.IsNotFound(err))
}

func TestRegisterLearner_CreatesWithDefaults(t *testing.T) {
	env := newTestEnv()
	handler := NewRegisterLearnerHandler(env.learners, env.ids, nil)

	res, err := handler.Handle(context.Background(), RegisterLearnerCommand{
		TelegramID: 42,
		FirstName:  "Mina",
		Username:   "mina_k",
	})

	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Learner.IsActive)
	assert.Equal(t, learner.DefaultPreferences(), res.Learner.Preferences)
	assert.Equal(t, learner.DefaultEstimatedScore, res.Learner.CurrentEstimatedScore)
}

func TestRegisterLearner_ExistingLearnerIsReactivated(t *testing.T) {
	env := newTestEnv()
	handler := NewRegisterLearnerHandler(env.learners, env.ids, nil)

	first, err := handler.Handle(context.Background(), RegisterLearnerCommand{TelegramID: 42, FirstName: "Mina"})
	require.NoError(t, err)

	// Unsubscribe, then /start again.
	sub := NewSetSubscriptionHandler(env.learners, nil)
	_, err = sub.Handle(context.Background(), SetSubscriptionCommand{TelegramID: 42, Active: false})
	require.NoError(t, err)

	second, err := handler.Handle(context.Background(), RegisterLearnerCommand{TelegramID: 42, FirstName: "Mina"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Learner.ID, second.Learner.ID)
	assert.True(t, second.Learner.IsActive)
}

func TestRegisterLearner_RepeatStartTouchesLastActiveAt(t *testing.T) {
	env := newTestEnv()
	handler := NewRegisterLearnerHandler(env.learners, env.ids, nil)

	first, err := handler.Handle(context.Background(), RegisterLearnerCommand{TelegramID: 42, FirstName: "Mina"})
	require.NoError(t, err)

	// Backdate the learner so the touch is observable.
	stale := time.Now().UTC().Add(-72 * time.Hour)
	first.Learner.LastActiveAt = stale
	require.NoError(t, env.learners.Update(context.Background(), first.Learner))

	second, err := handler.Handle(context.Background(), RegisterLearnerCommand{TelegramID: 42, FirstName: "Mina"})
	require.NoError(t, err)

	assert.True(t, second.Learner.LastActiveAt.After(stale), "repeat /start must refresh last_active_at")
}
