// Package openai implements lesson generation and audio synthesis on top
// of the OpenAI API. It is the only package that talks to OpenAI; the rest
// of the system sees the lesson.Generator and lesson.AudioSynthesizer ports.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/lesson"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/pkg/circuitbreaker"
	"github.com/toeic-hub/toeic-daily-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Config contains OpenAI client configuration.
type Config struct {
	// APIKey authenticates against the OpenAI API.
	APIKey string

	// BaseURL overrides the API endpoint (OpenAI-compatible providers).
	BaseURL string

	// Model is the chat model used for lesson generation.
	Model string

	// TTSModel is the speech model used for listening clips.
	TTSModel string

	// TTSVoice is the voice used for listening clips.
	TTSVoice string
}

// DefaultConfig returns sensible defaults. The API key must still be set.
func DefaultConfig() Config {
	return Config{
		Model:    openai.GPT4oMini,
		TTSModel: string(openai.TTSModel1),
		TTSVoice: string(openai.VoiceAlloy),
	}
}

// Client generates lessons and synthesizes audio via OpenAI.
// It implements lesson.Generator and lesson.AudioSynthesizer.
type Client struct {
	api     *openai.Client
	config  Config
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	logger  *slog.Logger

	questionRepo question.Repository
	ids          command.IDGenerator

	// generateOne is overridable for tests; defaults to generateQuestion.
	generateOne func(ctx context.Context, req lesson.Request, category question.Category) (*question.Question, error)
}

// NewClient creates a new OpenAI client.
// Generated questions are persisted to the question bank before the lesson
// is returned, so answer callbacks can always resolve their question.
func NewClient(
	config Config,
	questionRepo question.Repository,
	ids command.IDGenerator,
	logger *slog.Logger,
) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.TTSModel == "" {
		config.TTSModel = string(openai.TTSModel1)
	}
	if config.TTSVoice == "" {
		config.TTSVoice = string(openai.VoiceAlloy)
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}

	breaker := circuitbreaker.OpenAIBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	c := &Client{
		api:          openai.NewClientWithConfig(apiConfig),
		config:       config,
		breaker:      breaker,
		retrier:      retry.OpenAIRetrier(),
		logger:       logger,
		questionRepo: questionRepo,
		ids:          ids,
	}
	c.generateOne = c.generateQuestion

	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON GENERATION
// ══════════════════════════════════════════════════════════════════════════════

// generatedQuestion is the wire shape the model is asked to produce for
// one question.
type generatedQuestion struct {
	Part          int               `json:"part"`
	Text          string            `json:"text"`
	Choices       map[string]string `json:"choices"`
	CorrectChoice string            `json:"correct_choice"`
	Explanation   string            `json:"explanation"`

	// AudioScript is only requested for listening questions.
	AudioScript string `json:"audio_script"`
}

// questionSchema constrains the model output to the generatedQuestion
// shape. Listening and practice questions share one schema; the prompt
// tells the model when audio_script must carry a real transcript and when
// it must be empty.
var questionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "part": {"type": "integer"},
    "text": {"type": "string"},
    "choices": {
      "type": "object",
      "properties": {
        "A": {"type": "string"},
        "B": {"type": "string"},
        "C": {"type": "string"},
        "D": {"type": "string"}
      },
      "required": ["A", "B", "C", "D"],
      "additionalProperties": false
    },
    "correct_choice": {"type": "string", "enum": ["A", "B", "C", "D"]},
    "explanation": {"type": "string"},
    "audio_script": {"type": "string"}
  },
  "required": ["part", "text", "choices", "correct_choice", "explanation", "audio_script"],
  "additionalProperties": false
}`)

// Generate produces a personalized lesson for one learner.
//
// Questions are generated one API call at a time and each survivor is
// persisted to the question bank before the next call. A failed item is
// logged and skipped; Generate fails only when not a single question
// could be produced.
func (c *Client) Generate(ctx context.Context, req lesson.Request) (*lesson.Lesson, error) {
	now := time.Now().UTC()
	ls := &lesson.Lesson{
		LearnerID: req.Learner.ID,
		Date:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}

	generate := c.generateOne
	if generate == nil {
		generate = c.generateQuestion
	}

	var lastErr error
	for i := 0; i < req.ListeningCount; i++ {
		q, err := generate(ctx, req, question.CategoryListening)
		if err != nil {
			lastErr = err
			c.logger.Warn("listening question generation failed, skipping",
				"learner_id", req.Learner.ID,
				"item", i+1,
				"error", err,
			)
			continue
		}
		ls.Listening = append(ls.Listening, lesson.ListeningItem{Question: q})
	}

	for i := 0; i < req.GrammarCount; i++ {
		category := question.CategoryGrammar
		if i%2 == 1 {
			category = question.CategoryVocabulary
		}

		q, err := generate(ctx, req, category)
		if err != nil {
			lastErr = err
			c.logger.Warn("practice question generation failed, skipping",
				"learner_id", req.Learner.ID,
				"category", string(category),
				"item", i+1,
				"error", err,
			)
			continue
		}
		ls.Practice = append(ls.Practice, q)
	}

	if ls.IsEmpty() {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, shared.ErrGenerationUnavailable
	}

	c.logger.Info("lesson generated",
		"learner_id", req.Learner.ID,
		"listening", len(ls.Listening),
		"practice", len(ls.Practice),
		"requested", req.ListeningCount+req.GrammarCount,
	)

	return ls, nil
}

// generateQuestion requests, validates and persists a single question.
func (c *Client) generateQuestion(ctx context.Context, req lesson.Request, category question.Category) (*question.Question, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildQuestionPrompt(req, category)},
		},
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "toeic_question",
				Schema: questionSchema,
				Strict: true,
			},
		},
	}

	var resp openai.ChatCompletionResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			r, err := c.api.CreateChatCompletion(ctx, chatReq)
			if err != nil {
				return classifyError(err)
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, shared.WrapError("generation", "Generate", shared.ErrServiceUnavailable, "generation circuit is open", err)
		}
		return nil, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, shared.ErrGenerationInvalidResponse
	}

	var gen generatedQuestion
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &gen); err != nil {
		return nil, shared.WrapError("generation", "Parse", shared.ErrInvalidFormat, "malformed question payload", err)
	}

	q, err := c.toQuestion(req, category, &gen)
	if err != nil {
		return nil, err
	}

	if err := c.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("openai: persist generated question: %w", err)
	}

	return q, nil
}

// toQuestion maps the wire payload into a validated domain question.
func (c *Client) toQuestion(req lesson.Request, category question.Category, gen *generatedQuestion) (*question.Question, error) {
	choices := make(map[question.Choice]string, len(gen.Choices))
	for k, v := range gen.Choices {
		choices[question.NormalizeChoice(k)] = v
	}

	q := &question.Question{
		ID:            c.ids.GenerateID(),
		Part:          question.Part(gen.Part),
		Category:      category,
		Difficulty:    string(req.Learner.Preferences.Difficulty),
		Text:          gen.Text,
		Choices:       choices,
		CorrectChoice: question.NormalizeChoice(gen.CorrectChoice),
		Explanation:   gen.Explanation,
		AudioScript:   strings.TrimSpace(gen.AudioScript),
		CreatedAt:     time.Now().UTC(),
	}

	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("generation", "Parse", shared.ErrInvalidFormat, "generated question failed validation", err)
	}

	if category == question.CategoryListening && q.AudioScript == "" {
		return nil, shared.WrapError("generation", "Parse", shared.ErrEmptyValue, "listening question has no audio script", nil)
	}
	if category != question.CategoryListening {
		q.AudioScript = ""
	}

	return q, nil
}

const systemPrompt = `You are a TOEIC tutor creating questions for a daily practice Telegram bot.
Write clear, natural business English appropriate for the learner's level.
Every question must be a realistic TOEIC-style multiple choice question with
exactly four options and one correct answer.`

// buildQuestionPrompt assembles the per-question generation prompt.
func buildQuestionPrompt(req lesson.Request, category question.Category) string {
	l := req.Learner

	prompt := fmt.Sprintf(
		"Create one TOEIC %s question.\nLevel: %s\nTarget score: %d\nCurrent estimate: %d\n",
		category, l.Preferences.Difficulty, l.Preferences.TargetScore, l.CurrentEstimatedScore,
	)

	if category == question.CategoryListening {
		prompt += "Use a listening part (1-4). Put a short spoken transcript (2-4 sentences) in audio_script; the question must be answerable from the transcript alone.\n"
	} else {
		prompt += "Use a reading part (5-7). Leave audio_script empty.\n"
	}

	if len(req.WeakCategories) > 0 {
		prompt += fmt.Sprintf(
			"The learner is weakest in (weakest first): %v. Favor the patterns those areas struggle with.\n",
			req.WeakCategories,
		)
	}

	return prompt
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIO SYNTHESIS
// ══════════════════════════════════════════════════════════════════════════════

// Synthesize turns a transcript into an MP3 listening clip.
func (c *Client) Synthesize(ctx context.Context, transcript string) (*lesson.Audio, error) {
	speechReq := openai.CreateSpeechRequest{
		Model: openai.SpeechModel(c.config.TTSModel),
		Input: transcript,
		Voice: openai.SpeechVoice(c.config.TTSVoice),
	}

	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			resp, err := c.api.CreateSpeech(ctx, speechReq)
			if err != nil {
				return classifyError(err)
			}
			defer resp.Close()

			data, err = io.ReadAll(resp)
			if err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, shared.WrapError("audio", "Synthesize", shared.ErrExternalService, "speech synthesis failed", err)
	}

	return &lesson.Audio{
		Transcript: transcript,
		Data:       data,
		MIMEType:   "audio/mpeg",
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// classifyError tags an API error for the retrier: 5xx and 429 responses
// are worth retrying, everything else is permanent.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return retry.Retryable(err)
		case apiErr.HTTPStatusCode >= 500:
			return retry.Retryable(err)
		default:
			return retry.Permanent(err)
		}
	}
	// Network-level errors have no status code; assume transient.
	return retry.Retryable(err)
}

// mapError converts an exhausted API error into a domain error.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return shared.WrapError("generation", "Request", shared.ErrRateLimited, "generation rate limit exceeded", err)
		case apiErr.HTTPStatusCode >= 500:
			return shared.WrapError("generation", "Request", shared.ErrServiceUnavailable, "generation service is unavailable", err)
		}
	}
	return shared.WrapError("generation", "Request", shared.ErrServiceUnavailable, "generation request failed", err)
}
