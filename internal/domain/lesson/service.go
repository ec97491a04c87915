package lesson

import (
	"context"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
)

// Request carries everything a generator needs to personalize a lesson.
type Request struct {
	Learner *learner.Learner

	// WeakCategories, weakest first, bias question selection.
	WeakCategories []string

	// ListeningCount is how many listening questions to produce.
	ListeningCount int

	// GrammarCount is how many grammar/vocabulary questions to produce.
	GrammarCount int
}

// Generator produces personalized lesson content.
// Implementations live in infrastructure/external. Each item is
// validated and persisted as soon as it is generated; a single item's
// failure is logged and skipped, and Generate errors only when no item
// survived at all.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Lesson, error)
}

// AudioSynthesizer turns a transcript into a listening clip.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, transcript string) (*Audio, error)
}

// Transport delivers lesson parts to the learner, in order.
// A transport implementation must be safe for concurrent use.
type Transport interface {
	// SendText delivers a formatted text part.
	SendText(ctx context.Context, to learner.TelegramID, html string) error

	// SendAudio delivers a listening clip with a caption.
	SendAudio(ctx context.Context, to learner.TelegramID, audio *Audio, caption string) error

	// SendQuestion delivers one practice question with its answer
	// keyboard attached.
	SendQuestion(ctx context.Context, to learner.TelegramID, questionID, html string) error
}
