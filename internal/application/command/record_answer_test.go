package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

func TestRecordAnswer_CorrectAnswer(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	res, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "B",
	})

	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, question.ChoiceB, res.Response.Given)
	assert.Equal(t, 1, res.Progress.QuestionsAttempted)
	assert.Equal(t, 1, res.Progress.QuestionsCorrect)
	assert.Equal(t, 100.0, res.Progress.AccuracyPct)

	stored, err := env.questions.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount, "used count is bumped on every answer")
}

func TestRecordAnswer_NormalizesInput(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	res, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     " b ",
	})

	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, question.ChoiceB, res.Response.Given)
}

func TestRecordAnswer_StoresTimeTaken(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	res, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:        l.ID,
		QuestionID:       q.ID,
		Answer:           "B",
		TimeTakenSeconds: 12,
	})

	require.NoError(t, err)
	require.NotNil(t, res.Response.TimeTakenSeconds)
	assert.Equal(t, 12, *res.Response.TimeTakenSeconds)

	require.Len(t, env.responses.rows, 1)
	stored := env.responses.rows[0]
	require.NotNil(t, stored.TimeTakenSeconds)
	assert.Equal(t, 12, *stored.TimeTakenSeconds)
}

func TestRecordAnswer_UnreportedTimeTakenStaysNil(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	res, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "B",
	})

	require.NoError(t, err)
	assert.Nil(t, res.Response.TimeTakenSeconds)
}

func TestRecordAnswer_TouchesLastActiveAt(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	// Backdate the learner so the touch is observable.
	stale := time.Now().UTC().Add(-48 * time.Hour)
	l.LastActiveAt = stale
	require.NoError(t, env.learners.Update(context.Background(), l))

	_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "B",
	})
	require.NoError(t, err)

	updated, err := env.learners.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, updated.LastActiveAt.After(stale), "answering must refresh last_active_at")
}

func TestRecordAnswer_WrongAnswer(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	res, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "C",
	})

	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, question.ChoiceB, res.CorrectChoice)
	assert.NotEmpty(t, res.Explanation)
	assert.Equal(t, 0, res.Progress.QuestionsCorrect)
}

func TestRecordAnswer_UnknownLearner(t *testing.T) {
	env := newTestEnv()
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  "missing",
		QuestionID: q.ID,
		Answer:     "A",
	})

	assert.True(t, shared.IsNotFound(err))
}

func TestRecordAnswer_UnknownQuestion(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)

	_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: "missing",
		Answer:     "A",
	})

	assert.True(t, shared.IsNotFound(err))
}

func TestRecordAnswer_InvalidChoice(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "E",
	})

	assert.True(t, shared.IsValidation(err))
}

func TestRecordAnswer_DuplicateAnswersAllowed(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	// Re-answering the same question is repeat practice, not an error.
	for _, answer := range []string{"B", "C", "B"} {
		_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
			LearnerID:  l.ID,
			QuestionID: q.ID,
			Answer:     answer,
		})
		require.NoError(t, err)
	}

	assert.Len(t, env.responses.rows, 3)

	stored, err := env.questions.GetByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.UsedCount)
}

func TestRecordAnswer_TwoOfThreeEndToEnd(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q1 := env.addQuestion(question.CategoryGrammar, question.ChoiceB)
	q2 := env.addQuestion(question.CategoryVocabulary, question.ChoiceA)
	q3 := env.addQuestion(question.CategoryListening, question.ChoiceD)

	for _, sub := range []struct {
		q      *question.Question
		answer string
	}{
		{q1, "B"}, // correct
		{q2, "A"}, // correct
		{q3, "A"}, // wrong
	} {
		_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
			LearnerID:  l.ID,
			QuestionID: sub.q.ID,
			Answer:     sub.answer,
		})
		require.NoError(t, err)
	}

	row, err := env.rows.GetByLearnerAndDate(context.Background(), l.ID, env.recompute.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, row.QuestionsAttempted)
	assert.Equal(t, 2, row.QuestionsCorrect)
	assert.Equal(t, 66.7, row.AccuracyPct)
	assert.Equal(t, learner.Score(567), row.EstimatedScore)
	assert.Equal(t, 1, row.StreakDays)

	// Weakest category first: listening at 0%.
	require.NotEmpty(t, row.WeakAreas)
	assert.Equal(t, "listening", row.WeakAreas[0].Category)

	// The learner's headline estimate follows the recompute.
	updated, err := env.learners.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, learner.Score(567), updated.CurrentEstimatedScore)
}

func TestRecomputeProgress_Idempotent(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)
	q := env.addQuestion(question.CategoryGrammar, question.ChoiceB)

	_, err := env.record.Handle(context.Background(), RecordAnswerCommand{
		LearnerID:  l.ID,
		QuestionID: q.ID,
		Answer:     "B",
	})
	require.NoError(t, err)

	first, err := env.recompute.Handle(context.Background(), l.ID)
	require.NoError(t, err)
	second, err := env.recompute.Handle(context.Background(), l.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "recompute reuses the existing row")
	assert.Equal(t, first.QuestionsAttempted, second.QuestionsAttempted)
	assert.Equal(t, first.AccuracyPct, second.AccuracyPct)
	assert.Equal(t, first.EstimatedScore, second.EstimatedScore)
	assert.Equal(t, first.StreakDays, second.StreakDays)
}

func TestRecomputeProgress_IdleDayKeepsEstimate(t *testing.T) {
	env := newTestEnv()
	l := env.addLearner(100)

	row, err := env.recompute.Handle(context.Background(), l.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, row.QuestionsAttempted)
	assert.Equal(t, learner.DefaultEstimatedScore, row.EstimatedScore)

	updated, err := env.learners.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, learner.DefaultEstimatedScore, updated.CurrentEstimatedScore)
}
