package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/toeic-hub/toeic-daily-bot/internal/domain/learner"
	"github.com/toeic-hub/toeic-daily-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `
	id, telegram_id, first_name, username, target_score, difficulty,
	delivery_time, timezone, current_estimated_score, is_active,
	last_active_at, created_at, updated_at`

// Create creates a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *learner.Learner) error {
	query := `
		INSERT INTO learners (
			id, telegram_id, first_name, username, target_score, difficulty,
			delivery_time, timezone, current_estimated_score, is_active,
			last_active_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		int64(l.TelegramID),
		l.FirstName,
		l.Username,
		int(l.Preferences.TargetScore),
		string(l.Preferences.Difficulty),
		string(l.Preferences.DeliveryTime),
		l.Preferences.Timezone,
		int(l.CurrentEstimatedScore),
		l.IsActive,
		l.LastActiveAt,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns a learner by internal ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	query := `SELECT` + learnerColumns + ` FROM learners WHERE id = $1`
	return r.scanLearner(r.conn.QueryRow(ctx, query, id))
}

// GetByTelegramID returns a learner by Telegram ID.
func (r *LearnerRepository) GetByTelegramID(ctx context.Context, telegramID learner.TelegramID) (*learner.Learner, error) {
	query := `SELECT` + learnerColumns + ` FROM learners WHERE telegram_id = $1`
	return r.scanLearner(r.conn.QueryRow(ctx, query, int64(telegramID)))
}

// Update updates a learner.
func (r *LearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	query := `
		UPDATE learners SET
			first_name = $1,
			username = $2,
			target_score = $3,
			difficulty = $4,
			delivery_time = $5,
			timezone = $6,
			current_estimated_score = $7,
			is_active = $8,
			last_active_at = $9,
			updated_at = $10
		WHERE id = $11
	`

	result, err := r.conn.Exec(ctx, query,
		l.FirstName,
		l.Username,
		int(l.Preferences.TargetScore),
		string(l.Preferences.Difficulty),
		string(l.Preferences.DeliveryTime),
		l.Preferences.Timezone,
		int(l.CurrentEstimatedScore),
		l.IsActive,
		l.LastActiveAt,
		time.Now().UTC(),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// ListActive returns all learners currently subscribed to daily delivery.
func (r *LearnerRepository) ListActive(ctx context.Context) ([]*learner.Learner, error) {
	query := `SELECT` + learnerColumns + ` FROM learners WHERE is_active ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// List returns learners with pagination.
func (r *LearnerRepository) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + learnerColumns + ` FROM learners ORDER BY created_at LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// Count returns the total number of learners.
func (r *LearnerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM learners`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count learners: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *LearnerRepository) scanLearner(row pgx.Row) (*learner.Learner, error) {
	var (
		l            learner.Learner
		telegramID   int64
		targetScore  int
		difficulty   string
		deliveryTime string
		estimate     int
	)

	err := row.Scan(
		&l.ID,
		&telegramID,
		&l.FirstName,
		&l.Username,
		&targetScore,
		&difficulty,
		&deliveryTime,
		&l.Preferences.Timezone,
		&estimate,
		&l.IsActive,
		&l.LastActiveAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to scan learner: %w", err)
	}

	l.TelegramID = learner.TelegramID(telegramID)
	l.Preferences.TargetScore = learner.Score(targetScore)
	l.Preferences.Difficulty = learner.Difficulty(difficulty)
	l.Preferences.DeliveryTime = learner.DeliveryTime(deliveryTime)
	l.CurrentEstimatedScore = learner.Score(estimate)

	return &l, nil
}

func (r *LearnerRepository) scanLearners(rows pgx.Rows) ([]*learner.Learner, error) {
	learners := make([]*learner.Learner, 0)
	for rows.Next() {
		l, err := r.scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}
