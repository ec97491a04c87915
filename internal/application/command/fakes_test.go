package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// In-memory repository fakes shared by the command handler tests.

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) GenerateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type memLearnerRepo struct {
	mu       sync.Mutex
	byID     map[string]*learner.Learner
	byTgID   map[learner.TelegramID]string
}

func newMemLearnerRepo() *memLearnerRepo {
	return &memLearnerRepo{
		byID:   make(map[string]*learner.Learner),
		byTgID: make(map[learner.TelegramID]string),
	}
}

func (r *memLearnerRepo) Create(ctx context.Context, l *learner.Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTgID[l.TelegramID]; ok {
		return shared.ErrLearnerAlreadyExists
	}
	cp := *l
	r.byID[l.ID] = &cp
	r.byTgID[l.TelegramID] = l.ID
	return nil
}

func (r *memLearnerRepo) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memLearnerRepo) GetByTelegramID(ctx context.Context, tgID learner.TelegramID) (*learner.Learner, error) {
	r.mu.Lock()
	id, ok := r.byTgID[tgID]
	r.mu.Unlock()
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memLearnerRepo) Update(ctx context.Context, l *learner.Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[l.ID]; !ok {
		return shared.ErrLearnerNotFound
	}
	cp := *l
	r.byID[l.ID] = &cp
	return nil
}

func (r *memLearnerRepo) ListActive(ctx context.Context) ([]*learner.Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*learner.Learner
	for _, l := range r.byID {
		if l.IsActive {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLearnerRepo) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*learner.Learner
	for _, l := range r.byID {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memLearnerRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

type memQuestionRepo struct {
	mu   sync.Mutex
	byID map[string]*question.Question
}

func newMemQuestionRepo() *memQuestionRepo {
	return &memQuestionRepo{byID: make(map[string]*question.Question)}
}

func (r *memQuestionRepo) Create(ctx context.Context, q *question.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	r.byID[q.ID] = &cp
	return nil
}

func (r *memQuestionRepo) CreateBatch(ctx context.Context, qs []*question.Question) error {
	for _, q := range qs {
		if err := r.Create(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *memQuestionRepo) GetByID(ctx context.Context, id string) (*question.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrQuestionNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *memQuestionRepo) IncrementUsedCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return shared.ErrQuestionNotFound
	}
	q.UsedCount++
	return nil
}

func (r *memQuestionRepo) ListByCategory(ctx context.Context, c question.Category, limit int) ([]*question.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*question.Question
	for _, q := range r.byID {
		if q.Category == c && len(out) < limit {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memResponseRepo struct {
	mu        sync.Mutex
	rows      []*response.Response
	questions *memQuestionRepo
}

func newMemResponseRepo(questions *memQuestionRepo) *memResponseRepo {
	return &memResponseRepo{questions: questions}
}

func (r *memResponseRepo) Create(ctx context.Context, resp *response.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *resp
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memResponseRepo) ListByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]*response.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*response.Response
	for _, row := range r.rows {
		if row.LearnerID == learnerID && !row.AnsweredAt.Before(from) && row.AnsweredAt.Before(to) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memResponseRepo) CountByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) (int, int, error) {
	rows, err := r.ListByLearnerBetween(ctx, learnerID, from, to)
	if err != nil {
		return 0, 0, err
	}
	attempted, correct := 0, 0
	for _, row := range rows {
		attempted++
		if row.IsCorrect {
			correct++
		}
	}
	return attempted, correct, nil
}

func (r *memResponseRepo) CategoryStatsByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]response.CategoryStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCat := make(map[string]*response.CategoryStat)
	for _, row := range r.rows {
		if row.LearnerID != learnerID || row.AnsweredAt.Before(from) || !row.AnsweredAt.Before(to) {
			continue
		}
		q, ok := r.questions.byID[row.QuestionID]
		if !ok {
			continue
		}
		cat := string(q.Category)
		st, ok := byCat[cat]
		if !ok {
			st = &response.CategoryStat{Category: cat}
			byCat[cat] = st
		}
		st.Attempted++
		if row.IsCorrect {
			st.Correct++
		}
	}
	var out []response.CategoryStat
	for _, st := range byCat {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (r *memResponseRepo) ActiveDays(ctx context.Context, learnerID string, until time.Time, limit int) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, row := range r.rows {
		if row.LearnerID != learnerID {
			continue
		}
		d := progress.DayOf(row.AnsweredAt)
		if d.After(until) || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

type memProgressRepo struct {
	mu   sync.Mutex
	rows map[string]*progress.DailyProgress // key: learnerID + date
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{rows: make(map[string]*progress.DailyProgress)}
}

func progressKey(learnerID string, day time.Time) string {
	return learnerID + "|" + progress.DayOf(day).Format("2006-01-02")
}

func (r *memProgressRepo) Upsert(ctx context.Context, p *progress.DailyProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.rows[progressKey(p.LearnerID, p.Date)] = &cp
	return nil
}

func (r *memProgressRepo) GetByLearnerAndDate(ctx context.Context, learnerID string, day time.Time) (*progress.DailyProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[progressKey(learnerID, day)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProgressRepo) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*progress.DailyProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.DailyProgress
	for _, p := range r.rows {
		if p.LearnerID == learnerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProgressRepo) ListByLearnerSince(ctx context.Context, learnerID string, since time.Time) ([]*progress.DailyProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := progress.DayOf(since)
	var out []*progress.DailyProgress
	for _, p := range r.rows {
		if p.LearnerID == learnerID && !p.Date.Before(day) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// testEnv bundles the fakes behind wired handlers.
type testEnv struct {
	learners  *memLearnerRepo
	questions *memQuestionRepo
	responses *memResponseRepo
	rows      *memProgressRepo
	ids       *seqIDs

	recompute *RecomputeProgressHandler
	record    *RecordAnswerHandler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		learners:  newMemLearnerRepo(),
		questions: newMemQuestionRepo(),
		rows:      newMemProgressRepo(),
		ids:       &seqIDs{},
	}
	env.responses = newMemResponseRepo(env.questions)
	env.recompute = NewRecomputeProgressHandler(
		env.learners, env.responses, env.rows, env.ids, nil, nil, SystemClock{},
	)
	env.record = NewRecordAnswerHandler(
		env.learners, env.questions, env.responses, env.recompute, env.ids, nil,
	)
	return env
}

func (env *testEnv) addLearner(tgID int64) *learner.Learner {
	l, _ := learner.NewLearner(env.ids.GenerateID(), learner.TelegramID(tgID), "Test", "test")
	_ = env.learners.Create(context.Background(), l)
	return l
}

func (env *testEnv) addQuestion(cat question.Category, correct question.Choice) *question.Question {
	q := &question.Question{
		ID:            env.ids.GenerateID(),
		Part:          5,
		Category:      cat,
		Difficulty:    "intermediate",
		Text:          "The report ___ by Friday.",
		Choices:       map[question.Choice]string{"A": "submit", "B": "must be submitted", "C": "submitting", "D": "submits"},
		CorrectChoice: correct,
		Explanation:   "Passive with a deadline takes 'must be submitted'.",
		CreatedAt:     time.Now().UTC(),
	}
	_ = env.questions.Create(context.Background(), q)
	return q
}
