package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/progress"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	id, learner_id, date, questions_attempted, questions_correct,
	accuracy_pct, estimated_score, streak_days,
	listening_accuracy, grammar_accuracy, vocabulary_accuracy, reading_accuracy,
	weak_areas, updated_at`

// Upsert inserts or replaces the row for (learner, date). Rows are derived
// state, so the conflict path overwrites every aggregate column.
func (r *ProgressRepository) Upsert(ctx context.Context, p *progress.DailyProgress) error {
	query := `
		INSERT INTO daily_progress (
			id, learner_id, date, questions_attempted, questions_correct,
			accuracy_pct, estimated_score, streak_days,
			listening_accuracy, grammar_accuracy, vocabulary_accuracy, reading_accuracy,
			weak_areas, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (learner_id, date) DO UPDATE SET
			questions_attempted = EXCLUDED.questions_attempted,
			questions_correct = EXCLUDED.questions_correct,
			accuracy_pct = EXCLUDED.accuracy_pct,
			estimated_score = EXCLUDED.estimated_score,
			streak_days = EXCLUDED.streak_days,
			listening_accuracy = EXCLUDED.listening_accuracy,
			grammar_accuracy = EXCLUDED.grammar_accuracy,
			vocabulary_accuracy = EXCLUDED.vocabulary_accuracy,
			reading_accuracy = EXCLUDED.reading_accuracy,
			weak_areas = EXCLUDED.weak_areas,
			updated_at = EXCLUDED.updated_at
	`

	weakAreasJSON, err := json.Marshal(p.WeakAreas)
	if err != nil {
		return fmt.Errorf("failed to marshal weak areas: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		p.LearnerID,
		p.Date,
		p.QuestionsAttempted,
		p.QuestionsCorrect,
		p.AccuracyPct,
		int(p.EstimatedScore),
		p.StreakDays,
		p.ListeningAccuracy,
		p.GrammarAccuracy,
		p.VocabularyAccuracy,
		p.ReadingAccuracy,
		weakAreasJSON,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// GetByLearnerAndDate returns the row for a specific day.
func (r *ProgressRepository) GetByLearnerAndDate(ctx context.Context, learnerID string, day time.Time) (*progress.DailyProgress, error) {
	query := `SELECT` + progressColumns + ` FROM daily_progress WHERE learner_id = $1 AND date = $2`
	return r.scanProgress(r.conn.QueryRow(ctx, query, learnerID, progress.DayOf(day)))
}

// ListByLearner returns the most recent rows, newest first.
func (r *ProgressRepository) ListByLearner(ctx context.Context, learnerID string, limit int) ([]*progress.DailyProgress, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `SELECT` + progressColumns + `
		FROM daily_progress
		WHERE learner_id = $1
		ORDER BY date DESC
		LIMIT $2`

	rows, err := r.conn.Query(ctx, query, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	result := make([]*progress.DailyProgress, 0, limit)
	for rows.Next() {
		p, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return result, rows.Err()
}

// ListByLearnerSince returns rows with date >= since, oldest first.
// Feeds the weak-area lookback window during a recompute.
func (r *ProgressRepository) ListByLearnerSince(ctx context.Context, learnerID string, since time.Time) ([]*progress.DailyProgress, error) {
	query := `SELECT` + progressColumns + `
		FROM daily_progress
		WHERE learner_id = $1 AND date >= $2
		ORDER BY date`

	rows, err := r.conn.Query(ctx, query, learnerID, progress.DayOf(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list progress window: %w", err)
	}
	defer rows.Close()

	result := make([]*progress.DailyProgress, 0)
	for rows.Next() {
		p, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return result, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ProgressRepository) scanProgress(row pgx.Row) (*progress.DailyProgress, error) {
	var (
		p             progress.DailyProgress
		estimate      int
		weakAreasJSON []byte
	)

	err := row.Scan(
		&p.ID,
		&p.LearnerID,
		&p.Date,
		&p.QuestionsAttempted,
		&p.QuestionsCorrect,
		&p.AccuracyPct,
		&estimate,
		&p.StreakDays,
		&p.ListeningAccuracy,
		&p.GrammarAccuracy,
		&p.VocabularyAccuracy,
		&p.ReadingAccuracy,
		&weakAreasJSON,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	if err := json.Unmarshal(weakAreasJSON, &p.WeakAreas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weak areas: %w", err)
	}

	p.EstimatedScore = learner.Score(estimate)
	// The DATE column comes back at local midnight; normalize to UTC.
	p.Date = progress.DayOf(p.Date)

	return &p, nil
}
