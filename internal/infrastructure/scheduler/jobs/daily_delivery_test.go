package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/lesson"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeLearnerRepo struct {
	learners []*learner.Learner
}

func (r *fakeLearnerRepo) Create(ctx context.Context, l *learner.Learner) error { return nil }
func (r *fakeLearnerRepo) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}
func (r *fakeLearnerRepo) GetByTelegramID(ctx context.Context, id learner.TelegramID) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}
func (r *fakeLearnerRepo) Update(ctx context.Context, l *learner.Learner) error { return nil }
func (r *fakeLearnerRepo) ListActive(ctx context.Context) ([]*learner.Learner, error) {
	active := make([]*learner.Learner, 0)
	for _, l := range r.learners {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}
func (r *fakeLearnerRepo) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	return r.learners, nil
}
func (r *fakeLearnerRepo) Count(ctx context.Context) (int, error) { return len(r.learners), nil }

type fakeProgressRepo struct {
	rows map[string][]*progress.DailyProgress
}

func (r *fakeProgressRepo) Upsert(ctx context.Context, p *progress.DailyProgress) error { return nil }
func (r *fakeProgressRepo) GetByLearnerAndDate(ctx context.Context, learnerID string, day time.Time) (*progress.DailyProgress, error) {
	return nil, shared.ErrProgressNotFound
}
func (r *fakeProgressRepo) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*progress.DailyProgress, error) {
	return r.rows[learnerID], nil
}
func (r *fakeProgressRepo) ListByLearnerSince(ctx context.Context, learnerID string, since time.Time) ([]*progress.DailyProgress, error) {
	out := make([]*progress.DailyProgress, 0)
	for _, p := range r.rows[learnerID] {
		if !p.Date.Before(progress.DayOf(since)) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []lesson.Request
	err      error
	blockCh  chan struct{} // when set, Generate blocks until closed
}

func (g *fakeGenerator) Generate(ctx context.Context, req lesson.Request) (*lesson.Lesson, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	block := g.blockCh
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if g.err != nil {
		return nil, g.err
	}

	id := req.Learner.ID
	return &lesson.Lesson{
		LearnerID: id,
		Listening: []lesson.ListeningItem{
			{Question: &question.Question{
				ID: "lq1-" + id, Part: 3, Category: question.CategoryListening,
				Text: "What does the man suggest?", CorrectChoice: question.ChoiceB,
				AudioScript: "M: Let's move the meeting to Thursday.",
			}},
		},
		Practice: []*question.Question{
			{ID: "pq1-" + id, Part: 5, Category: question.CategoryGrammar, Text: "Pick one", CorrectChoice: question.ChoiceA},
			{ID: "pq2-" + id, Part: 5, Category: question.CategoryVocabulary, Text: "Pick another", CorrectChoice: question.ChoiceC},
		},
	}, nil
}

type fakeSynthesizer struct {
	err   error
	calls int
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, transcript string) (*lesson.Audio, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &lesson.Audio{Transcript: transcript, Data: []byte("mp3"), MIMEType: "audio/mpeg"}, nil
}

// sentPart records one transport call for assertion on ordering.
type sentPart struct {
	to   learner.TelegramID
	kind string
	body string
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []sentPart
	failOn func(p sentPart) bool
}

func (t *fakeTransport) record(p sentPart) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failOn != nil && t.failOn(p) {
		return errors.New("transport down")
	}
	t.sent = append(t.sent, p)
	return nil
}

func (t *fakeTransport) SendText(ctx context.Context, to learner.TelegramID, html string) error {
	return t.record(sentPart{to: to, kind: "text", body: html})
}

func (t *fakeTransport) SendAudio(ctx context.Context, to learner.TelegramID, audio *lesson.Audio, caption string) error {
	return t.record(sentPart{to: to, kind: "audio", body: caption})
}

func (t *fakeTransport) SendQuestion(ctx context.Context, to learner.TelegramID, questionID, html string) error {
	return t.record(sentPart{to: to, kind: "question:" + questionID, body: html})
}

func (t *fakeTransport) sentTo(id learner.TelegramID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := make([]string, 0)
	for _, p := range t.sent {
		if p.to == id {
			kinds = append(kinds, p.kind)
		}
	}
	return kinds
}

func (t *fakeTransport) textsTo(id learner.TelegramID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	texts := make([]string, 0)
	for _, p := range t.sent {
		if p.to == id && p.kind == "text" {
			texts = append(texts, p.body)
		}
	}
	return texts
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func testLearner(t *testing.T, id string, telegramID int64, tz string, deliveryTime string) *learner.Learner {
	t.Helper()
	l, err := learner.NewLearner(id, learner.TelegramID(telegramID), "Mina", "mina_"+id)
	require.NoError(t, err)
	l.Preferences.Timezone = tz
	l.Preferences.DeliveryTime = learner.DeliveryTime(deliveryTime)
	return l
}

type deliveryFixture struct {
	job       *DailyDeliveryJob
	learners  *fakeLearnerRepo
	generator *fakeGenerator
	audio     *fakeSynthesizer
	transport *fakeTransport
}

func newDeliveryFixture(learners ...*learner.Learner) *deliveryFixture {
	f := &deliveryFixture{
		learners:  &fakeLearnerRepo{learners: learners},
		generator: &fakeGenerator{},
		audio:     &fakeSynthesizer{},
		transport: &fakeTransport{},
	}

	cfg := DefaultDailyDeliveryConfig()
	cfg.Concurrency = 2

	f.job = NewDailyDeliveryJob(
		f.learners,
		&fakeProgressRepo{rows: map[string][]*progress.DailyProgress{}},
		f.generator,
		f.audio,
		f.transport,
		nil,
		nil,
		cfg,
	)
	return f
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestDailyDelivery_DeliversPartsInOrder(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)

	// Monday 07:00 UTC
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.DueLearners)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.Failed)

	// Intro first, then clip before its question, then the separator,
	// practice questions, and the closing message last.
	assert.Equal(t, []string{
		"text", // intro
		"audio",
		"question:lq1-l1",
		"text", // separator
		"question:pq1-l1",
		"question:pq2-l1",
		"text", // closing
	}, f.transport.sentTo(l.TelegramID))

	texts := f.transport.textsTo(l.TelegramID)
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "Target: 800")
	assert.Contains(t, texts[2], "화이팅")
}

func TestDailyDelivery_IntroShowsStreakFromHistory(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)

	today := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.job.progressRepo = &fakeProgressRepo{rows: map[string][]*progress.DailyProgress{
		"l1": {
			{LearnerID: "l1", Date: today, QuestionsAttempted: 2},
			{LearnerID: "l1", Date: today.AddDate(0, 0, -1), QuestionsAttempted: 5},
			{LearnerID: "l1", Date: today.AddDate(0, 0, -2), QuestionsAttempted: 4},
		},
	}}
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	texts := f.transport.textsTo(l.TelegramID)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "Streak: 3")
}

func TestDailyDelivery_IntroOmitsZeroStreak(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	texts := f.transport.textsTo(l.TelegramID)
	require.NotEmpty(t, texts)
	assert.NotContains(t, texts[0], "Streak")
}

func TestDailyDelivery_SelectsOnlyDueLearners(t *testing.T) {
	due := testLearner(t, "due", 100, "Asia/Seoul", "16:00") // 07:00 UTC = 16:00 Seoul
	notDue := testLearner(t, "later", 200, "Asia/Seoul", "20:00")
	inactive := testLearner(t, "off", 300, "Asia/Seoul", "16:00")
	inactive.Unsubscribe()

	f := newDeliveryFixture(due, notDue, inactive)
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	assert.Equal(t, 2, stats.ActiveLearners)
	assert.Equal(t, 1, stats.DueLearners)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.SkippedReasons["not_due"])
	assert.Empty(t, f.transport.sentTo(notDue.TelegramID))
	assert.Empty(t, f.transport.sentTo(inactive.TelegramID))
}

func TestDailyDelivery_SkipsWeekendsInLearnerTimezone(t *testing.T) {
	// Friday 23:00 UTC is already Saturday 08:00 in Seoul.
	seoul := testLearner(t, "kr", 100, "Asia/Seoul", "08:00")
	// But still Friday 18:00 in New York.
	ny := testLearner(t, "us", 200, "America/New_York", "18:00")

	f := newDeliveryFixture(seoul, ny)
	f.job.now = func() time.Time { return time.Date(2026, 3, 6, 23, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	assert.Equal(t, 1, stats.SkippedReasons["weekend"])
	assert.Equal(t, 1, stats.Delivered)
	assert.Empty(t, f.transport.sentTo(seoul.TelegramID))
	assert.NotEmpty(t, f.transport.sentTo(ny.TelegramID))
}

func TestDailyDelivery_MidLessonFailureIsIsolated(t *testing.T) {
	broken := testLearner(t, "broken", 100, "UTC", "07:00")
	healthy := testLearner(t, "healthy", 200, "UTC", "07:00")

	f := newDeliveryFixture(broken, healthy)
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	// Fail the broken learner's second text part (the separator).
	var brokenTexts int
	var mu sync.Mutex
	f.transport.failOn = func(p sentPart) bool {
		mu.Lock()
		defer mu.Unlock()
		if p.to == broken.TelegramID && p.kind == "text" {
			brokenTexts++
			return brokenTexts == 2
		}
		return false
	}

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	assert.Equal(t, 2, stats.DueLearners)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0].Error(), "broken")

	// The broken learner got everything up to the separator, then nothing.
	assert.Equal(t, []string{"text", "audio", "question:lq1-broken"}, f.transport.sentTo(broken.TelegramID))
	// The healthy learner received the full lesson.
	assert.Len(t, f.transport.sentTo(healthy.TelegramID), 7)
}

func TestDailyDelivery_GenerationFailureCountsAsFailed(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)
	f.generator.err = fmt.Errorf("wrapped: %w", shared.ErrGenerationUnavailable)
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Delivered)
	assert.Empty(t, f.transport.sentTo(l.TelegramID))
}

func TestDailyDelivery_AudioFailureDowngradesToTextOnly(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)
	f.audio.err = shared.ErrAudioSynthesisFailed
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	stats := f.job.LastRunStats()
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.Failed)

	// The listening question still goes out, just without its clip.
	sent := f.transport.sentTo(l.TelegramID)
	assert.NotContains(t, sent, "audio")
	assert.Contains(t, sent, "question:lq1-l1")
	assert.Len(t, sent, 6)
}

func TestDailyDelivery_OverlappingTickIsSkipped(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	block := make(chan struct{})
	f.generator.blockCh = block

	done := make(chan error, 1)
	go func() {
		done <- f.job.Run(context.Background())
	}()

	// Wait until the first cycle is inside Generate.
	assert.Eventually(t, func() bool {
		f.generator.mu.Lock()
		defer f.generator.mu.Unlock()
		return len(f.generator.requests) == 1
	}, time.Second, 5*time.Millisecond)

	// A second tick while the first is in flight returns immediately
	// without starting another cycle.
	require.NoError(t, f.job.Run(context.Background()))
	f.generator.mu.Lock()
	assert.Len(t, f.generator.requests, 1)
	f.generator.mu.Unlock()

	close(block)
	require.NoError(t, <-done)

	stats := f.job.LastRunStats()
	assert.Equal(t, 1, stats.Delivered)
}

func TestDailyDelivery_WeakCategoriesBiasGeneration(t *testing.T) {
	l := testLearner(t, "l1", 100, "UTC", "07:00")
	f := newDeliveryFixture(l)
	f.job.progressRepo = &fakeProgressRepo{rows: map[string][]*progress.DailyProgress{
		"l1": {{
			LearnerID: "l1",
			WeakAreas: []progress.WeakArea{
				{Category: "listening", AccuracyPct: 40, Days: 3},
				{Category: "grammar", AccuracyPct: 75, Days: 4},
			},
		}},
	}}
	f.job.now = func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }

	require.NoError(t, f.job.Run(context.Background()))

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Equal(t, []string{"listening", "grammar"}, req.WeakCategories)
	assert.Equal(t, 3, req.ListeningCount)
	assert.Equal(t, 5, req.GrammarCount)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "███████░░░", progressBar(600, 800))
	assert.Equal(t, "██████████", progressBar(900, 800))
	assert.Equal(t, strings.Repeat("░", 10), progressBar(0, 800))
}
