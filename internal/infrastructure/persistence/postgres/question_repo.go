package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/question"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository implements question.Repository for PostgreSQL.
type QuestionRepository struct {
	conn *Connection
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(conn *Connection) *QuestionRepository {
	return &QuestionRepository{conn: conn}
}

const questionColumns = `
	id, part, category, difficulty, text, choices, correct_choice,
	explanation, audio_script, audio_url, used_count, created_at`

const insertQuestionSQL = `
	INSERT INTO questions (
		id, part, category, difficulty, text, choices, correct_choice,
		explanation, audio_script, audio_url, used_count, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Create stores a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *question.Question) error {
	args, err := questionArgs(q)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, insertQuestionSQL, args...); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	return nil
}

// CreateBatch stores a set of questions in one transaction.
func (r *QuestionRepository) CreateBatch(ctx context.Context, qs []*question.Question) error {
	if len(qs) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, q := range qs {
			args, err := questionArgs(q)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, insertQuestionSQL, args...); err != nil {
				return fmt.Errorf("failed to create question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

// GetByID returns a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*question.Question, error) {
	query := `SELECT` + questionColumns + ` FROM questions WHERE id = $1`
	return r.scanQuestion(r.conn.QueryRow(ctx, query, id))
}

// IncrementUsedCount bumps the usage counter by one.
func (r *QuestionRepository) IncrementUsedCount(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx,
		`UPDATE questions SET used_count = used_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment used count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrQuestionNotFound
	}

	return nil
}

// ListByCategory returns up to limit questions in a category, least-used first.
func (r *QuestionRepository) ListByCategory(ctx context.Context, category question.Category, limit int) ([]*question.Question, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT` + questionColumns + `
		FROM questions
		WHERE category = $1
		ORDER BY used_count ASC, created_at DESC
		LIMIT $2`

	rows, err := r.conn.Query(ctx, query, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*question.Question, 0, limit)
	for rows.Next() {
		q, err := r.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func questionArgs(q *question.Question) ([]interface{}, error) {
	choicesJSON, err := json.Marshal(q.Choices)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal choices: %w", err)
	}

	return []interface{}{
		q.ID,
		int(q.Part),
		string(q.Category),
		q.Difficulty,
		q.Text,
		choicesJSON,
		string(q.CorrectChoice),
		q.Explanation,
		q.AudioScript,
		q.AudioURL,
		q.UsedCount,
		q.CreatedAt,
	}, nil
}

func (r *QuestionRepository) scanQuestion(row pgx.Row) (*question.Question, error) {
	var (
		q           question.Question
		part        int
		category    string
		choicesJSON []byte
		correct     string
	)

	err := row.Scan(
		&q.ID,
		&part,
		&category,
		&q.Difficulty,
		&q.Text,
		&choicesJSON,
		&correct,
		&q.Explanation,
		&q.AudioScript,
		&q.AudioURL,
		&q.UsedCount,
		&q.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to scan question: %w", err)
	}

	if err := json.Unmarshal(choicesJSON, &q.Choices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal choices: %w", err)
	}

	q.Part = question.Part(part)
	q.Category = question.Category(category)
	q.CorrectChoice = question.Choice(correct)

	return &q, nil
}
