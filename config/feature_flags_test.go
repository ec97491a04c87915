package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureLessonAudio))
	assert.True(t, ff.IsEnabled(FeatureStatsWeakAreas))
	assert.False(t, ff.IsEnabled(FeatureExperimentalAdaptiveDifficulty))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_LESSON_AUDIO", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureLessonAudio))
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetOverride(42, FeatureExperimentalAdaptiveDifficulty, true)
	assert.True(t, ff.IsEnabledFor(FeatureExperimentalAdaptiveDifficulty, 42))
	assert.False(t, ff.IsEnabledFor(FeatureExperimentalAdaptiveDifficulty, 43))

	ff.ClearOverrides(42)
	assert.False(t, ff.IsEnabledFor(FeatureExperimentalAdaptiveDifficulty, 42))
}

func TestFeatureFlags_RolloutIsStablePerLearner(t *testing.T) {
	ff := LoadFeatureFlags()
	ff.features[FeatureNotifyStreakMilestone].Enabled = true
	ff.features[FeatureNotifyStreakMilestone].RolloutPercent = 50

	first := ff.IsEnabledFor(FeatureNotifyStreakMilestone, 1234)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabledFor(FeatureNotifyStreakMilestone, 1234))
	}
}
