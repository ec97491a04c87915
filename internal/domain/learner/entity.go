// Package learner contains the learner aggregate: identity, study
// preferences, and the current TOEIC score estimate.
package learner

import (
	"regexp"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TelegramID is the learner's Telegram identifier.
type TelegramID int64

// IsValid checks that the Telegram ID is positive.
func (id TelegramID) IsValid() bool {
	return id > 0
}

// Score is a TOEIC score (10-990).
type Score int

// MinScore and MaxScore bound the official TOEIC scale.
const (
	MinScore Score = 10
	MaxScore Score = 990
)

// IsValid checks that the score lies on the TOEIC scale.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// Difficulty is the requested lesson difficulty.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks that the difficulty is a known level.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

var deliveryTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// DeliveryTime is a local wall-clock time in "HH:MM" form.
type DeliveryTime string

// IsValid checks the HH:MM format.
func (t DeliveryTime) IsValid() bool {
	return deliveryTimeRe.MatchString(string(t))
}

// Defaults applied when a learner registers.
const (
	DefaultTargetScore    Score        = 800
	DefaultEstimatedScore Score        = 600
	DefaultDeliveryTime   DeliveryTime = "07:00"
	DefaultTimezone                    = "Asia/Seoul"
	DefaultDifficulty                  = DifficultyIntermediate
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Preferences holds the learner's study preferences.
type Preferences struct {
	// TargetScore is the score the learner is working toward.
	TargetScore Score

	// Difficulty is the requested lesson difficulty.
	Difficulty Difficulty

	// DeliveryTime is the local time of day lessons are delivered, "HH:MM".
	DeliveryTime DeliveryTime

	// Timezone is the IANA timezone name the delivery time is interpreted in.
	Timezone string
}

// DefaultPreferences returns the preferences applied at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		TargetScore:  DefaultTargetScore,
		Difficulty:   DefaultDifficulty,
		DeliveryTime: DefaultDeliveryTime,
		Timezone:     DefaultTimezone,
	}
}

// Learner is the aggregate root for a subscribed student.
type Learner struct {
	// ID is the internal unique identifier (UUID).
	ID string

	// TelegramID is the learner's Telegram identifier.
	TelegramID TelegramID

	// FirstName from the Telegram profile.
	FirstName string

	// Username from the Telegram profile (may be empty).
	Username string

	// Preferences are the learner's study preferences.
	Preferences Preferences

	// CurrentEstimatedScore is the latest TOEIC estimate from analytics.
	CurrentEstimatedScore Score

	// IsActive indicates whether the learner receives daily lessons.
	IsActive bool

	// LastActiveAt is the last time the learner interacted with the bot.
	LastActiveAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLearner creates a learner with default preferences.
func NewLearner(id string, telegramID TelegramID, firstName, username string) (*Learner, error) {
	if !telegramID.IsValid() {
		return nil, shared.ErrInvalidTelegramID
	}

	now := time.Now().UTC()
	return &Learner{
		ID:                    id,
		TelegramID:            telegramID,
		FirstName:             firstName,
		Username:              username,
		Preferences:           DefaultPreferences(),
		CurrentEstimatedScore: DefaultEstimatedScore,
		IsActive:              true,
		LastActiveAt:          now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Touch marks the learner as active right now. Interaction handlers call
// it on every inbound command or answer.
func (l *Learner) Touch() {
	now := time.Now().UTC()
	l.LastActiveAt = now
	l.UpdatedAt = now
}

// Subscribe marks the learner as receiving daily lessons.
func (l *Learner) Subscribe() {
	l.IsActive = true
	l.UpdatedAt = time.Now().UTC()
}

// Unsubscribe stops daily lesson delivery.
func (l *Learner) Unsubscribe() {
	l.IsActive = false
	l.UpdatedAt = time.Now().UTC()
}

// UpdateEstimatedScore replaces the current score estimate.
func (l *Learner) UpdateEstimatedScore(score Score) {
	l.CurrentEstimatedScore = score
	l.UpdatedAt = time.Now().UTC()
}

// Location resolves the learner's timezone. Unknown timezones fall back
// to UTC so a bad preference never makes the learner undeliverable.
func (l *Learner) Location() *time.Location {
	loc, err := time.LoadLocation(l.Preferences.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidatePreferences checks every field of a preferences value.
func ValidatePreferences(p Preferences) error {
	if !p.TargetScore.IsValid() {
		return shared.ErrInvalidTargetScore
	}
	if !p.Difficulty.IsValid() {
		return shared.ErrInvalidDifficulty
	}
	if !p.DeliveryTime.IsValid() {
		return shared.ErrInvalidDeliveryTime
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return shared.ErrInvalidTimezone
	}
	return nil
}
