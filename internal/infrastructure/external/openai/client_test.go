package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/lesson"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/pkg/retry"
)

type seqIDs struct{ n int }

func (s *seqIDs) GenerateID() string {
	s.n++
	return string(rune('a' + s.n - 1))
}

func testRequest(t *testing.T) lesson.Request {
	t.Helper()
	l, err := learner.NewLearner("l1", 100, "Mina", "mina")
	require.NoError(t, err)
	return lesson.Request{Learner: l, WeakCategories: []string{"listening"}, ListeningCount: 3, GrammarCount: 5}
}

func TestToQuestion_MapsAndValidates(t *testing.T) {
	c := &Client{ids: &seqIDs{}}
	req := testRequest(t)

	gen := &generatedQuestion{
		Part: 5,
		Text: "The meeting ___ at 9.",
		Choices: map[string]string{
			"A": "start", "B": "starts", "C": "starting", "D": "started",
		},
		CorrectChoice: "b",
		Explanation:   "Third person singular.",
	}

	q, err := c.toQuestion(req, question.CategoryGrammar, gen)
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, question.CategoryGrammar, q.Category)
	assert.Equal(t, question.ChoiceB, q.CorrectChoice)
	assert.Equal(t, string(learner.DifficultyIntermediate), q.Difficulty)
	assert.Equal(t, "starts", q.Choices[question.ChoiceB])
	assert.Empty(t, q.AudioScript)
}

func TestToQuestion_KeepsListeningScript(t *testing.T) {
	c := &Client{ids: &seqIDs{}}
	req := testRequest(t)

	gen := &generatedQuestion{
		Part: 3,
		Text: "What does the man suggest?",
		Choices: map[string]string{
			"A": "Reschedule", "B": "Call back", "C": "Email the client", "D": "Cancel",
		},
		CorrectChoice: "A",
		Explanation:   "He proposes moving the meeting.",
		AudioScript:   " M: The client pushed our call. Could we meet tomorrow instead? ",
	}

	q, err := c.toQuestion(req, question.CategoryListening, gen)
	require.NoError(t, err)
	assert.Equal(t, question.CategoryListening, q.Category)
	assert.Equal(t, "M: The client pushed our call. Could we meet tomorrow instead?", q.AudioScript)
}

func TestToQuestion_RejectsListeningWithoutScript(t *testing.T) {
	c := &Client{ids: &seqIDs{}}
	req := testRequest(t)

	gen := &generatedQuestion{
		Part: 2,
		Text: "Where is the report?",
		Choices: map[string]string{
			"A": "On the desk", "B": "Tomorrow", "C": "By courier", "D": "Ms. Park",
		},
		CorrectChoice: "A",
		Explanation:   "Location answer to a where-question.",
	}

	_, err := c.toQuestion(req, question.CategoryListening, gen)
	assert.Error(t, err)
}

func TestToQuestion_RejectsInvalidQuestion(t *testing.T) {
	c := &Client{ids: &seqIDs{}}
	req := testRequest(t)

	gen := &generatedQuestion{Part: 99, Text: "?", CorrectChoice: "A"}

	_, err := c.toQuestion(req, question.CategoryGrammar, gen)
	assert.Error(t, err)
}

func TestBuildQuestionPrompt(t *testing.T) {
	req := testRequest(t)

	t.Run("grammar", func(t *testing.T) {
		prompt := buildQuestionPrompt(req, question.CategoryGrammar)
		assert.Contains(t, prompt, "one TOEIC grammar question")
		assert.Contains(t, prompt, "intermediate")
		assert.Contains(t, prompt, "Target score: 800")
		assert.Contains(t, prompt, "Leave audio_script empty")
		assert.Contains(t, prompt, "listening") // weak-area bias
	})

	t.Run("listening", func(t *testing.T) {
		prompt := buildQuestionPrompt(req, question.CategoryListening)
		assert.Contains(t, prompt, "one TOEIC listening question")
		assert.Contains(t, prompt, "audio_script")
		assert.Contains(t, prompt, "listening part (1-4)")
	})
}

func TestGenerate_SkipsFailedItemsAndKeepsSurvivors(t *testing.T) {
	req := testRequest(t)
	req.ListeningCount = 2
	req.GrammarCount = 3

	ids := &seqIDs{}
	calls := 0
	c := &Client{
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.generateOne = func(ctx context.Context, r lesson.Request, category question.Category) (*question.Question, error) {
		calls++
		// Second call (a listening item) and fourth call (a practice
		// item) fail; everything else succeeds.
		if calls == 2 || calls == 4 {
			return nil, errors.New("malformed payload")
		}
		return &question.Question{ID: ids.GenerateID(), Category: category}, nil
	}

	ls, err := c.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, ls.Listening, 1)
	assert.Len(t, ls.Practice, 2)
	assert.Equal(t, 5, calls)

	assert.Equal(t, question.CategoryListening, ls.Listening[0].Question.Category)
	// Practice slots alternate grammar/vocabulary by slot index, so the
	// surviving first and third slots are grammar.
	assert.Equal(t, question.CategoryGrammar, ls.Practice[0].Category)
	assert.Equal(t, question.CategoryGrammar, ls.Practice[1].Category)
}

func TestGenerate_AlternatesPracticeCategories(t *testing.T) {
	req := testRequest(t)
	req.ListeningCount = 0
	req.GrammarCount = 4

	ids := &seqIDs{}
	c := &Client{
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.generateOne = func(ctx context.Context, r lesson.Request, category question.Category) (*question.Question, error) {
		return &question.Question{ID: ids.GenerateID(), Category: category}, nil
	}

	ls, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ls.Practice, 4)

	want := []question.Category{
		question.CategoryGrammar, question.CategoryVocabulary,
		question.CategoryGrammar, question.CategoryVocabulary,
	}
	for i, q := range ls.Practice {
		assert.Equal(t, want[i], q.Category)
	}
}

func TestGenerate_ErrorsWhenNothingSurvives(t *testing.T) {
	req := testRequest(t)
	req.ListeningCount = 1
	req.GrammarCount = 1

	c := &Client{
		ids:    &seqIDs{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.generateOne = func(ctx context.Context, r lesson.Request, category question.Category) (*question.Question, error) {
		return nil, errors.New("model is down")
	}

	_, err := c.Generate(context.Background(), req)
	assert.Error(t, err)
}

func TestQuestionSchemaIsValidJSON(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal(questionSchema, &v))
	assert.Equal(t, "object", v["type"])
}

func TestClassifyError(t *testing.T) {
	t.Run("rate limit is retryable", func(t *testing.T) {
		err := classifyError(&openai.APIError{HTTPStatusCode: 429})
		assert.True(t, retry.IsRetryable(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		err := classifyError(&openai.APIError{HTTPStatusCode: 503})
		assert.True(t, retry.IsRetryable(err))
	})

	t.Run("client error is permanent", func(t *testing.T) {
		err := classifyError(&openai.APIError{HTTPStatusCode: 400})
		assert.True(t, retry.IsPermanent(err))
	})

	t.Run("network error is retryable", func(t *testing.T) {
		err := classifyError(errors.New("connection reset"))
		assert.True(t, retry.IsRetryable(err))
	})
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil, nil)
	assert.Error(t, err)
}
