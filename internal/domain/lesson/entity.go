// Package lesson contains the generated daily lesson content and the
// ports to the services that produce and deliver it.
package lesson

import (
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
)

// ListeningItem pairs one listening question with its synthesized clip.
type ListeningItem struct {
	// Question is already persisted to the question bank.
	Question *question.Question

	// Audio is nil when synthesis failed; the question is then delivered
	// text-only.
	Audio *Audio
}

// Audio is a synthesized listening clip.
type Audio struct {
	// Transcript the audio was synthesized from.
	Transcript string

	// Data is the encoded audio payload.
	Data []byte

	// MIMEType of the payload, e.g. "audio/mpeg".
	MIMEType string
}

// Lesson is one learner's generated content for one day.
//
// Items are generated and persisted one at a time, so a lesson may carry
// fewer items than requested when single generations failed. Delivery
// order is fixed: intro summary, listening items (audio then question,
// in generation order), a separator, practice items in generation order,
// a closing message.
type Lesson struct {
	// LearnerID the lesson was generated for.
	LearnerID string

	// Date the lesson belongs to (UTC midnight).
	Date time.Time

	// Listening items in generation order.
	Listening []ListeningItem

	// Practice holds the grammar/vocabulary questions in generation order.
	Practice []*question.Question
}

// QuestionCount returns the total number of questions across sections.
func (l *Lesson) QuestionCount() int {
	return len(l.Listening) + len(l.Practice)
}

// IsEmpty reports whether every generation attempt failed.
func (l *Lesson) IsEmpty() bool {
	return l.QuestionCount() == 0
}
