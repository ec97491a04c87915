package command

import (
	"context"
	"fmt"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ANSWER COMMAND
// Grades and persists one answer, then synchronously rebuilds today's
// progress so the learner's next /stats reflects the attempt.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAnswerCommand contains one submitted answer.
type RecordAnswerCommand struct {
	LearnerID  string
	QuestionID string

	// Answer is the raw submitted choice; normalized before grading.
	Answer string

	// TimeTakenSeconds is optional; zero means the client did not
	// report how long the answer took.
	TimeTakenSeconds int
}

// Validate validates the command. The answer is checked after
// normalization, so "b" and " B " both pass.
func (c RecordAnswerCommand) Validate() error {
	if c.LearnerID == "" {
		return shared.NewDomainError("response", "Record", shared.ErrInvalidID, "learner_id is required")
	}
	if c.QuestionID == "" {
		return shared.NewDomainError("response", "Record", shared.ErrInvalidID, "question_id is required")
	}
	if c.Answer == "" {
		return shared.ErrEmptyAnswer
	}
	if !question.NormalizeChoice(c.Answer).IsValid() {
		return shared.ErrInvalidChoice
	}
	return nil
}

// AnswerRecordedEvent is emitted after a response is stored.
type AnswerRecordedEvent struct {
	shared.BaseEvent
	QuestionID string
	IsCorrect  bool
}

// RecordAnswerResult contains the stored response and fresh analytics.
type RecordAnswerResult struct {
	Response *response.Response

	// IsCorrect duplicates Response.IsCorrect for convenience.
	IsCorrect bool

	// CorrectChoice and Explanation come from the question, for feedback.
	CorrectChoice question.Choice
	Explanation   string

	// Progress is today's row, rebuilt after this answer.
	Progress *progress.DailyProgress
}

// RecordAnswerHandler handles the RecordAnswerCommand.
type RecordAnswerHandler struct {
	learners  learner.Repository
	questions question.Repository
	responses response.Repository
	recompute *RecomputeProgressHandler
	ids       IDGenerator
	events    EventPublisher
}

// NewRecordAnswerHandler creates a new RecordAnswerHandler.
func NewRecordAnswerHandler(
	learners learner.Repository,
	questions question.Repository,
	responses response.Repository,
	recompute *RecomputeProgressHandler,
	ids IDGenerator,
	events EventPublisher,
) *RecordAnswerHandler {
	if events == nil {
		events = NoopPublisher()
	}
	return &RecordAnswerHandler{
		learners:  learners,
		questions: questions,
		responses: responses,
		recompute: recompute,
		ids:       ids,
		events:    events,
	}
}

// Handle grades and records one answer.
//
// Answering the same question twice stores two rows: repeat practice is
// legitimate activity and analytics count every attempt.
func (h *RecordAnswerHandler) Handle(ctx context.Context, cmd RecordAnswerCommand) (*RecordAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	l, err := h.learners.GetByID(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	q, err := h.questions.GetByID(ctx, cmd.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	given := question.NormalizeChoice(cmd.Answer)
	correct := q.Grade(given)

	var timeTaken *int
	if cmd.TimeTakenSeconds > 0 {
		timeTaken = &cmd.TimeTakenSeconds
	}

	r := response.New(h.ids.GenerateID(), l.ID, q.ID, given, correct, timeTaken)
	if err := h.responses.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("record_answer: save response: %w", err)
	}

	if err := h.questions.IncrementUsedCount(ctx, q.ID); err != nil {
		return nil, fmt.Errorf("record_answer: bump used count: %w", err)
	}

	l.Touch()
	if err := h.learners.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("record_answer: touch learner: %w", err)
	}

	// Synchronous by contract: the caller sees the updated aggregates.
	row, err := h.recompute.Handle(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	h.events.Publish(ctx, AnswerRecordedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventAnswerRecorded, l.ID),
		QuestionID: q.ID,
		IsCorrect:  correct,
	})

	return &RecordAnswerResult{
		Response:      r,
		IsCorrect:     correct,
		CorrectChoice: q.CorrectChoice,
		Explanation:   q.Explanation,
		Progress:      row,
	}, nil
}
