package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout support.
// Rollout assignment is stable per learner: the same Telegram ID always
// lands in the same bucket for a given feature.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[int64]map[string]bool // telegramID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on a hash of their Telegram ID
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Lesson Features ===
	FeatureLessonAudio        = "lesson.audio"         // TTS audio part in daily lessons
	FeatureLessonAIGeneration = "lesson.ai_generation" // generate questions via OpenAI
	FeatureLessonWeakAreaBias = "lesson.weak_area_bias" // bias generation toward weak areas

	// === Stats Features ===
	FeatureStatsWeakAreas = "stats.weak_areas" // weak-area ranking in /stats
	FeatureStatsStreaks   = "stats.streaks"    // streak display in /stats

	// === Notification Features ===
	FeatureNotifyStreakMilestone = "notify.streak_milestone" // "7 days in a row!"

	// === Experimental Features ===
	FeatureExperimentalAdaptiveDifficulty = "experimental.adaptive_difficulty" // difficulty follows estimate
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[int64]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaults := []*Feature{
		{
			Name:           FeatureLessonAudio,
			Description:    "Include a TTS audio clip with listening questions",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureLessonAIGeneration,
			Description:    "Generate lesson content via OpenAI instead of the built-in bank",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureLessonWeakAreaBias,
			Description:    "Bias generated questions toward the learner's weakest areas",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureStatsWeakAreas,
			Description:    "Show weakest categories in the stats card",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureStatsStreaks,
			Description:    "Show the practice streak in the stats card",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureNotifyStreakMilestone,
			Description:    "Celebrate streak milestones after an answer",
			Enabled:        false,
			RolloutPercent: 0,
		},
		{
			Name:           FeatureExperimentalAdaptiveDifficulty,
			Description:    "Adjust question difficulty from the current score estimate",
			Enabled:        false,
			RolloutPercent: 0,
		},
	}

	for _, f := range defaults {
		ff.features[f.Name] = f
	}
}

// loadFromEnvironment applies env overrides of the form
// FEATURE_LESSON_AUDIO=false and FEATURE_LESSON_AUDIO_ROLLOUT=50.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envName := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if val := os.Getenv(envName); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
				if enabled && feature.RolloutPercent == 0 {
					feature.RolloutPercent = 100
				}
			}
		}

		if val := os.Getenv(envName + "_ROLLOUT"); val != "" {
			if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.RolloutPercent = pct
			}
		}
	}
}

// IsEnabled reports whether a feature is globally on, ignoring rollout.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// IsEnabledFor reports whether a feature is on for a specific learner,
// honoring per-user overrides and rollout percentage.
func (ff *FeatureFlags) IsEnabledFor(name string, telegramID int64) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.userOverrides[telegramID]; ok {
		if enabled, ok := overrides[name]; ok {
			return enabled
		}
	}

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}

	if f.RolloutPercent >= 100 {
		return true
	}
	if f.RolloutPercent <= 0 {
		return false
	}

	return rolloutBucket(name, telegramID) < f.RolloutPercent
}

// SetOverride forces a feature on or off for one learner.
func (ff *FeatureFlags) SetOverride(telegramID int64, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[telegramID] == nil {
		ff.userOverrides[telegramID] = make(map[string]bool)
	}
	ff.userOverrides[telegramID][name] = enabled
}

// ClearOverrides removes all per-learner overrides for one learner.
func (ff *FeatureFlags) ClearOverrides(telegramID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, telegramID)
}

// List returns a copy of all registered features.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	return out
}

// rolloutBucket maps (feature, learner) to a stable bucket in [0, 100).
func rolloutBucket(name string, telegramID int64) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(strconv.FormatInt(telegramID, 10)))
	return int(h.Sum32() % 100)
}
