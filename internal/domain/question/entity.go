// Package question contains the TOEIC question bank entity.
package question

import (
	"strings"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// Part is a TOEIC test part (1-7). Parts 1-4 are listening, 5-7 reading.
type Part int

// IsValid checks the part number.
func (p Part) IsValid() bool {
	return p >= 1 && p <= 7
}

// IsListening reports whether the part belongs to the listening section.
func (p Part) IsListening() bool {
	return p >= 1 && p <= 4
}

// Category classifies a question for weak-area analytics.
type Category string

const (
	CategoryGrammar    Category = "grammar"
	CategoryVocabulary Category = "vocabulary"
	CategoryListening  Category = "listening"
	CategoryReading    Category = "reading"
)

// IsValid checks that the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryGrammar, CategoryVocabulary, CategoryListening, CategoryReading:
		return true
	}
	return false
}

// Choice is one of the four answer options.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
	ChoiceC Choice = "C"
	ChoiceD Choice = "D"
)

// NormalizeChoice trims and upper-cases a raw answer string.
func NormalizeChoice(raw string) Choice {
	return Choice(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsValid checks that the choice is A-D.
func (c Choice) IsValid() bool {
	switch c {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

// Question is a single TOEIC practice question.
type Question struct {
	// ID is the internal unique identifier (UUID).
	ID string

	// Part is the TOEIC part (1-7).
	Part Part

	// Category classifies the question for analytics.
	Category Category

	// Difficulty the question was generated for.
	Difficulty string

	// Text is the question stem.
	Text string

	// Choices holds the four options keyed by A-D.
	Choices map[Choice]string

	// CorrectChoice is the graded answer.
	CorrectChoice Choice

	// Explanation shown to the learner after answering.
	Explanation string

	// AudioScript is the transcript a listening clip is synthesized
	// from. Empty for non-listening questions.
	AudioScript string

	// AudioURL points to the synthesized audio for listening questions.
	AudioURL string

	// UsedCount tracks how many times the question was answered.
	UsedCount int

	CreatedAt time.Time
}

// Validate checks the structural invariants of a question.
func (q *Question) Validate() error {
	if !q.Part.IsValid() {
		return shared.ErrInvalidPart
	}
	if !q.Category.IsValid() {
		return shared.ErrInvalidCategory
	}
	if !q.CorrectChoice.IsValid() {
		return shared.ErrInvalidChoice
	}
	if strings.TrimSpace(q.Text) == "" {
		return shared.WrapError("question", "Validate", shared.ErrEmptyValue, "question text is empty", nil)
	}
	return nil
}

// Grade reports whether the given (already normalized) choice is correct.
func (q *Question) Grade(c Choice) bool {
	return c == q.CorrectChoice
}
