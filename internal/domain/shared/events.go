package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the domain and that other parts of the system may react to.
const (
	// Learner events
	EventLearnerRegistered    EventType = "learner.registered"
	EventLearnerUpdated       EventType = "learner.updated"
	EventLearnerSubscribed    EventType = "learner.subscribed"
	EventLearnerUnsubscribed  EventType = "learner.unsubscribed"
	EventPreferencesUpdated   EventType = "learner.preferences_updated"
	EventEstimatedScoreMoved  EventType = "learner.estimated_score_moved"

	// Interaction events
	EventAnswerRecorded EventType = "interaction.answer_recorded"

	// Progress events
	EventProgressRecomputed EventType = "progress.recomputed"
	EventStreakExtended     EventType = "progress.streak_extended"
	EventStreakBroken       EventType = "progress.streak_broken"

	// Delivery events
	EventLessonDelivered      EventType = "delivery.lesson_delivered"
	EventDeliveryFailed       EventType = "delivery.failed"
	EventDeliveryCycleStarted EventType = "delivery.cycle_started"
	EventDeliveryCycleDone    EventType = "delivery.cycle_done"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}
