// Package jobs contains implementations of scheduled jobs for the daily
// lesson pipeline.
package jobs

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/application/command"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/lesson"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
	"github.com/toeic-hub/toeic-daily-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DELIVERY JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyDeliveryJob delivers personalized daily lessons to learners.
//
// The job runs on a minute tick. Each run selects the learners whose local
// wall clock matches their preferred delivery time, generates a lesson per
// learner, and sends the lesson parts in a fixed order. One learner's
// failure never affects another's delivery, and an overlapping tick is
// skipped while a cycle is still in flight.
type DailyDeliveryJob struct {
	// Dependencies
	learnerRepo  learner.Repository
	progressRepo progress.Repository
	generator    lesson.Generator
	audio        lesson.AudioSynthesizer
	transport    lesson.Transport
	events       command.EventPublisher
	logger       *slog.Logger

	// Configuration
	config DailyDeliveryConfig

	// State
	inFlight     atomic.Bool
	lastRunStats atomic.Value // *DailyDeliveryStats

	// now is overridable for tests.
	now func() time.Time
}

// DailyDeliveryConfig contains configuration for the daily delivery job.
type DailyDeliveryConfig struct {
	// SkipWeekends disables delivery on Saturday and Sunday in each
	// learner's local timezone.
	SkipWeekends bool

	// ListeningCount is how many listening questions each lesson contains.
	ListeningCount int

	// GrammarCount is how many grammar/vocabulary questions each lesson
	// contains.
	GrammarCount int

	// Concurrency is the number of learners delivered to in parallel.
	Concurrency int

	// Timeout is the maximum duration for one delivery cycle.
	Timeout time.Duration
}

// DefaultDailyDeliveryConfig returns sensible defaults.
func DefaultDailyDeliveryConfig() DailyDeliveryConfig {
	return DailyDeliveryConfig{
		SkipWeekends:   true,
		ListeningCount: 3,
		GrammarCount:   5,
		Concurrency:    10,
		Timeout:        10 * time.Minute,
	}
}

// DailyDeliveryStats contains statistics from one delivery cycle.
type DailyDeliveryStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	ActiveLearners int
	DueLearners    int
	Delivered      int
	Failed         int
	SkippedReasons map[string]int
	Errors         []error
}

// NewDailyDeliveryJob creates a new daily delivery job.
func NewDailyDeliveryJob(
	learnerRepo learner.Repository,
	progressRepo progress.Repository,
	generator lesson.Generator,
	audio lesson.AudioSynthesizer,
	transport lesson.Transport,
	events command.EventPublisher,
	logger *slog.Logger,
	config DailyDeliveryConfig,
) *DailyDeliveryJob {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = command.NoopPublisher()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 10
	}
	if config.ListeningCount <= 0 {
		config.ListeningCount = 3
	}
	if config.GrammarCount <= 0 {
		config.GrammarCount = 5
	}

	return &DailyDeliveryJob{
		learnerRepo:  learnerRepo,
		progressRepo: progressRepo,
		generator:    generator,
		audio:        audio,
		transport:    transport,
		events:       events,
		logger:       logger,
		config:       config,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the job name.
func (j *DailyDeliveryJob) Name() string {
	return "daily_delivery"
}

// Description returns a human-readable description.
func (j *DailyDeliveryJob) Description() string {
	return "Generates and delivers personalized daily lessons to due learners"
}

// Run executes one delivery cycle.
// If a previous cycle is still in flight the run returns immediately; the
// scheduler tick must never pile up cycles behind a slow delivery.
func (j *DailyDeliveryJob) Run(ctx context.Context) error {
	if !j.inFlight.CompareAndSwap(false, true) {
		j.logger.Warn("delivery cycle still in flight, skipping tick")
		return nil
	}
	defer j.inFlight.Store(false)

	startedAt := j.now()
	stats := &DailyDeliveryStats{
		StartedAt:      startedAt,
		SkippedReasons: make(map[string]int),
		Errors:         make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	due, err := j.selectDueLearners(ctx, startedAt, stats)
	if err != nil {
		return fmt.Errorf("daily_delivery: select due learners: %w", err)
	}

	stats.DueLearners = len(due)

	if len(due) > 0 {
		j.logger.Info("starting delivery cycle",
			"active", stats.ActiveLearners,
			"due", stats.DueLearners,
		)
		j.events.Publish(ctx, shared.NewBaseEvent(shared.EventDeliveryCycleStarted, "daily_delivery"))

		j.deliverConcurrently(ctx, due, stats)

		j.events.Publish(ctx, shared.NewBaseEvent(shared.EventDeliveryCycleDone, "daily_delivery"))
	}

	stats.CompletedAt = j.now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	if stats.DueLearners > 0 {
		j.logger.Info("delivery cycle completed",
			"duration", stats.Duration.String(),
			"due", stats.DueLearners,
			"delivered", stats.Delivered,
			"failed", stats.Failed,
		)
	}

	return nil
}

// selectDueLearners returns active learners whose local wall clock matches
// their preferred delivery time right now.
func (j *DailyDeliveryJob) selectDueLearners(ctx context.Context, now time.Time, stats *DailyDeliveryStats) ([]*learner.Learner, error) {
	active, err := j.learnerRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	stats.ActiveLearners = len(active)

	due := make([]*learner.Learner, 0)
	for _, l := range active {
		loc := l.Location()

		if j.config.SkipWeekends && timeutil.IsWeekendIn(now, loc) {
			stats.SkippedReasons["weekend"]++
			continue
		}

		if !timeutil.MatchesWallClock(now, loc, string(l.Preferences.DeliveryTime)) {
			stats.SkippedReasons["not_due"]++
			continue
		}

		due = append(due, l)
	}

	return due, nil
}

// deliverConcurrently delivers lessons using a bounded worker pool.
func (j *DailyDeliveryJob) deliverConcurrently(ctx context.Context, due []*learner.Learner, stats *DailyDeliveryStats) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, l := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{} // Acquire

		go func(lr *learner.Learner) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			// A panic while delivering to one learner must not take
			// down the whole cycle.
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					stats.Failed++
					stats.Errors = append(stats.Errors, fmt.Errorf("delivery panic for learner %s: %v", lr.ID, r))
					mu.Unlock()
					j.logger.Error("delivery panicked", "learner_id", lr.ID, "panic", r)
				}
			}()

			err := j.deliverToLearner(ctx, lr)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, err)
				j.logger.Error("failed to deliver lesson",
					"learner_id", lr.ID,
					"error", err,
				)
				j.events.Publish(ctx, shared.NewBaseEvent(shared.EventDeliveryFailed, lr.ID))
			} else {
				stats.Delivered++
				j.events.Publish(ctx, shared.NewBaseEvent(shared.EventLessonDelivered, lr.ID))
			}
		}(l)
	}

	wg.Wait()
}

// deliverToLearner generates a lesson and sends its parts in order.
func (j *DailyDeliveryJob) deliverToLearner(ctx context.Context, lr *learner.Learner) error {
	req := lesson.Request{
		Learner:        lr,
		WeakCategories: j.weakCategories(ctx, lr.ID),
		ListeningCount: j.config.ListeningCount,
		GrammarCount:   j.config.GrammarCount,
	}

	ls, err := j.generator.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generate lesson for learner %s: %w", lr.ID, err)
	}

	j.attachAudio(ctx, lr, ls)

	return j.sendParts(ctx, lr, ls)
}

// weakCategories returns the learner's weakest categories from the latest
// progress row, weakest first. Missing analytics are not an error: the
// generator simply gets no bias.
func (j *DailyDeliveryJob) weakCategories(ctx context.Context, learnerID string) []string {
	rows, err := j.progressRepo.ListByLearner(ctx, learnerID, 1)
	if err != nil || len(rows) == 0 {
		return nil
	}

	cats := make([]string, 0, len(rows[0].WeakAreas))
	for _, wa := range rows[0].WeakAreas {
		cats = append(cats, wa.Category)
	}
	return cats
}

// streakDays computes the learner's current streak from stored progress
// rows. A failed lookup means no streak line, not a failed delivery.
func (j *DailyDeliveryJob) streakDays(ctx context.Context, learnerID string, today time.Time) int {
	rows, err := j.progressRepo.ListByLearner(ctx, learnerID, progress.MaxStreakLookbackDays)
	if err != nil {
		return 0
	}
	return progress.StreakDays(progress.ActiveDates(rows), today)
}

// attachAudio synthesizes a clip for every listening item. A failed
// synthesis downgrades that one item to text-only rather than failing the
// delivery.
func (j *DailyDeliveryJob) attachAudio(ctx context.Context, lr *learner.Learner, ls *lesson.Lesson) {
	if j.audio == nil {
		return
	}

	for i := range ls.Listening {
		item := &ls.Listening[i]
		if item.Audio != nil || item.Question.AudioScript == "" {
			continue
		}

		audio, err := j.audio.Synthesize(ctx, item.Question.AudioScript)
		if err != nil {
			j.logger.Warn("audio synthesis failed, sending question text-only",
				"learner_id", lr.ID,
				"question_id", item.Question.ID,
				"error", err,
			)
			continue
		}

		item.Audio = audio
	}
}

// sendParts sends the lesson in the fixed order: intro, each listening
// item as clip then question, a separator, the practice questions, a
// closing message. The first failed part aborts the rest of this
// learner's lesson.
func (j *DailyDeliveryJob) sendParts(ctx context.Context, lr *learner.Learner, ls *lesson.Lesson) error {
	streak := j.streakDays(ctx, lr.ID, j.now())
	total := ls.QuestionCount()
	num := 0

	if err := j.transport.SendText(ctx, lr.TelegramID, formatIntro(lr, streak)); err != nil {
		return fmt.Errorf("send intro to learner %s: %w", lr.ID, err)
	}

	for i, item := range ls.Listening {
		if item.Audio != nil {
			caption := fmt.Sprintf("🎧 Listening %d/%d", i+1, len(ls.Listening))
			if err := j.transport.SendAudio(ctx, lr.TelegramID, item.Audio, caption); err != nil {
				return fmt.Errorf("send audio to learner %s: %w", lr.ID, err)
			}
		}

		num++
		if err := j.transport.SendQuestion(ctx, lr.TelegramID, item.Question.ID, formatQuestion(num, total, item.Question)); err != nil {
			return fmt.Errorf("send listening question to learner %s: %w", lr.ID, err)
		}
	}

	if len(ls.Listening) > 0 && len(ls.Practice) > 0 {
		if err := j.transport.SendText(ctx, lr.TelegramID, practiceSeparator); err != nil {
			return fmt.Errorf("send separator to learner %s: %w", lr.ID, err)
		}
	}

	for _, q := range ls.Practice {
		num++
		if err := j.transport.SendQuestion(ctx, lr.TelegramID, q.ID, formatQuestion(num, total, q)); err != nil {
			return fmt.Errorf("send practice question to learner %s: %w", lr.ID, err)
		}
	}

	if err := j.transport.SendText(ctx, lr.TelegramID, closingMessage); err != nil {
		return fmt.Errorf("send closing to learner %s: %w", lr.ID, err)
	}

	return nil
}

// LastRunStats returns statistics from the last delivery cycle.
func (j *DailyDeliveryJob) LastRunStats() *DailyDeliveryStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DailyDeliveryStats)
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

const (
	practiceSeparator = "━━━━━━━━━━\n✏️ <b>Grammar &amp; Vocabulary</b>"
	closingMessage    = "✅ That's today's lesson. Answer each question to update your score estimate.\n화이팅! 💪"
)

// formatIntro formats the lesson opening message: scores, progress toward
// the goal, and the streak when there is one.
func formatIntro(lr *learner.Learner, streak int) string {
	var sb strings.Builder

	name := lr.FirstName
	if name == "" {
		name = "there"
	}

	sb.WriteString(fmt.Sprintf("📚 <b>Good morning, %s!</b>\n\n", html.EscapeString(name)))
	sb.WriteString(fmt.Sprintf("🎯 Target: %d | Current estimate: %d\n",
		lr.Preferences.TargetScore, lr.CurrentEstimatedScore))
	sb.WriteString(fmt.Sprintf("%s %d%%", progressBar(lr.CurrentEstimatedScore, lr.Preferences.TargetScore), goalPct(lr.CurrentEstimatedScore, lr.Preferences.TargetScore)))

	if streak > 0 {
		sb.WriteString(fmt.Sprintf("\n🔥 Streak: %d day(s)", streak))
	}

	return sb.String()
}

// goalPct returns progress toward the target score as a whole percentage,
// capped at 100.
func goalPct(current, target learner.Score) int {
	if target <= 0 {
		return 0
	}
	pct := int(float64(current) / float64(target) * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// progressBar renders a ten-slot bar of progress toward the target score.
func progressBar(current, target learner.Score) string {
	filled := goalPct(current, target) / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// formatQuestion formats one practice question. The answer choices go on
// the inline keyboard, so the body carries only the stem and options.
func formatQuestion(num, total int, q *question.Question) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("❓ <b>Question %d/%d</b> (Part %d)\n\n", num, total, q.Part))
	sb.WriteString(html.EscapeString(q.Text))
	sb.WriteString("\n\n")

	for _, c := range []question.Choice{question.ChoiceA, question.ChoiceB, question.ChoiceC, question.ChoiceD} {
		if text, ok := q.Choices[c]; ok {
			sb.WriteString(fmt.Sprintf("<b>%s.</b> %s\n", c, html.EscapeString(text)))
		}
	}

	return sb.String()
}
