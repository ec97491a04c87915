package learner

import (
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// RegisteredEvent is emitted when a new learner registers.
type RegisteredEvent struct {
	shared.BaseEvent
	TelegramID TelegramID
	FirstName  string
}

// NewRegisteredEvent creates a registration event for a learner.
func NewRegisteredEvent(l *Learner) RegisteredEvent {
	return RegisteredEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventLearnerRegistered, l.ID),
		TelegramID: l.TelegramID,
		FirstName:  l.FirstName,
	}
}

// PreferencesUpdatedEvent is emitted when preferences change.
type PreferencesUpdatedEvent struct {
	shared.BaseEvent
	ChangedFields []string
	Preferences   Preferences
}

// NewPreferencesUpdatedEvent creates a preferences-updated event.
func NewPreferencesUpdatedEvent(l *Learner, changed []string) PreferencesUpdatedEvent {
	return PreferencesUpdatedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventPreferencesUpdated, l.ID),
		ChangedFields: changed,
		Preferences:   l.Preferences,
	}
}

// SubscriptionChangedEvent is emitted on subscribe/unsubscribe.
type SubscriptionChangedEvent struct {
	shared.BaseEvent
	IsActive bool
}

// NewSubscriptionChangedEvent creates a subscription event.
func NewSubscriptionChangedEvent(l *Learner) SubscriptionChangedEvent {
	eventType := shared.EventLearnerUnsubscribed
	if l.IsActive {
		eventType = shared.EventLearnerSubscribed
	}
	return SubscriptionChangedEvent{
		BaseEvent: shared.NewBaseEvent(eventType, l.ID),
		IsActive:  l.IsActive,
	}
}
