// Package response contains the answer records produced by learners.
package response

import (
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
)

// Response is a single graded answer to a question.
//
// There is deliberately no uniqueness constraint on (learner, question):
// answering the same question again produces a new row, and analytics
// count every attempt.
type Response struct {
	// ID is the internal unique identifier (UUID).
	ID string

	// LearnerID references the answering learner.
	LearnerID string

	// QuestionID references the answered question.
	QuestionID string

	// Given is the normalized answer choice.
	Given question.Choice

	// IsCorrect records the grading outcome at answer time.
	IsCorrect bool

	// TimeTakenSeconds is how long the learner took to answer. Nil when
	// the client did not report it.
	TimeTakenSeconds *int

	// AnsweredAt is when the answer was recorded (UTC).
	AnsweredAt time.Time
}

// New creates a graded response record. timeTaken may be nil.
func New(id, learnerID, questionID string, given question.Choice, correct bool, timeTaken *int) *Response {
	return &Response{
		ID:               id,
		LearnerID:        learnerID,
		QuestionID:       questionID,
		Given:            given,
		IsCorrect:        correct,
		TimeTakenSeconds: timeTaken,
		AnsweredAt:       time.Now().UTC(),
	}
}
