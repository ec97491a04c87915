package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/response"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ResponseRepository implements response.Repository for PostgreSQL.
type ResponseRepository struct {
	conn *Connection
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(conn *Connection) *ResponseRepository {
	return &ResponseRepository{conn: conn}
}

// Create stores a new response. Duplicates per (learner, question) are
// allowed; the table carries no uniqueness constraint on that pair.
func (r *ResponseRepository) Create(ctx context.Context, resp *response.Response) error {
	query := `
		INSERT INTO responses (id, learner_id, question_id, given_choice, is_correct, time_taken_seconds, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		resp.ID,
		resp.LearnerID,
		resp.QuestionID,
		string(resp.Given),
		resp.IsCorrect,
		resp.TimeTakenSeconds,
		resp.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}

	return nil
}

// ListByLearnerBetween returns a learner's responses in [from, to).
func (r *ResponseRepository) ListByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]*response.Response, error) {
	query := `
		SELECT id, learner_id, question_id, given_choice, is_correct, time_taken_seconds, answered_at
		FROM responses
		WHERE learner_id = $1 AND answered_at >= $2 AND answered_at < $3
		ORDER BY answered_at
	`

	rows, err := r.conn.Query(ctx, query, learnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	responses := make([]*response.Response, 0)
	for rows.Next() {
		var (
			resp  response.Response
			given string
		)
		if err := rows.Scan(&resp.ID, &resp.LearnerID, &resp.QuestionID, &given, &resp.IsCorrect, &resp.TimeTakenSeconds, &resp.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		resp.Given = question.Choice(given)
		responses = append(responses, &resp)
	}

	return responses, rows.Err()
}

// CountByLearnerBetween returns attempted and correct counts in [from, to).
func (r *ResponseRepository) CountByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		FROM responses
		WHERE learner_id = $1 AND answered_at >= $2 AND answered_at < $3
	`

	var attempted, correct int
	if err := r.conn.QueryRow(ctx, query, learnerID, from, to).Scan(&attempted, &correct); err != nil {
		return 0, 0, fmt.Errorf("failed to count responses: %w", err)
	}

	return attempted, correct, nil
}

// CategoryStatsByLearnerBetween aggregates responses in [from, to) per
// question category.
func (r *ResponseRepository) CategoryStatsByLearnerBetween(ctx context.Context, learnerID string, from, to time.Time) ([]response.CategoryStat, error) {
	query := `
		SELECT q.category, COUNT(*), COUNT(*) FILTER (WHERE r.is_correct)
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		WHERE r.learner_id = $1 AND r.answered_at >= $2 AND r.answered_at < $3
		GROUP BY q.category
		ORDER BY q.category
	`

	rows, err := r.conn.Query(ctx, query, learnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category stats: %w", err)
	}
	defer rows.Close()

	stats := make([]response.CategoryStat, 0)
	for rows.Next() {
		var s response.CategoryStat
		if err := rows.Scan(&s.Category, &s.Attempted, &s.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan category stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// ActiveDays returns the distinct UTC dates on which the learner answered
// at least one question, newest first, at most limit days back from the
// given day.
func (r *ResponseRepository) ActiveDays(ctx context.Context, learnerID string, until time.Time, limit int) ([]time.Time, error) {
	query := `
		SELECT DISTINCT (answered_at AT TIME ZONE 'UTC')::date AS day
		FROM responses
		WHERE learner_id = $1 AND answered_at < $2
		ORDER BY day DESC
		LIMIT $3
	`

	// The window is [until - limit days, until + 1 day) so "today" counts.
	cutoff := until.AddDate(0, 0, 1)

	rows, err := r.conn.Query(ctx, query, learnerID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active days: %w", err)
	}
	defer rows.Close()

	days := make([]time.Time, 0)
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan active day: %w", err)
		}
		days = append(days, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC))
	}

	return days, rows.Err()
}
