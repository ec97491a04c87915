package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}

			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_learners",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_questions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_responses",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_daily_progress",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SQL
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE learners (
	id UUID PRIMARY KEY,
	telegram_id BIGINT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	target_score INTEGER NOT NULL DEFAULT 800,
	difficulty TEXT NOT NULL DEFAULT 'intermediate',
	delivery_time TEXT NOT NULL DEFAULT '07:00',
	timezone TEXT NOT NULL DEFAULT 'Asia/Seoul',
	current_estimated_score INTEGER NOT NULL DEFAULT 600,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_active_at TIMESTAMP WITH TIME ZONE NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX idx_learners_active ON learners (is_active) WHERE is_active;
`

const migration001Down = `DROP TABLE IF EXISTS learners;`

const migration002Up = `
CREATE TABLE questions (
	id UUID PRIMARY KEY,
	part SMALLINT NOT NULL CHECK (part BETWEEN 1 AND 7),
	category TEXT NOT NULL,
	difficulty TEXT NOT NULL DEFAULT 'intermediate',
	text TEXT NOT NULL,
	choices JSONB NOT NULL,
	correct_choice CHAR(1) NOT NULL CHECK (correct_choice IN ('A', 'B', 'C', 'D')),
	explanation TEXT NOT NULL DEFAULT '',
	audio_script TEXT NOT NULL DEFAULT '',
	audio_url TEXT NOT NULL DEFAULT '',
	used_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX idx_questions_category_used ON questions (category, used_count);
`

const migration002Down = `DROP TABLE IF EXISTS questions;`

const migration003Up = `
CREATE TABLE responses (
	id UUID PRIMARY KEY,
	learner_id UUID NOT NULL REFERENCES learners (id) ON DELETE CASCADE,
	question_id UUID NOT NULL REFERENCES questions (id),
	given_choice CHAR(1) NOT NULL CHECK (given_choice IN ('A', 'B', 'C', 'D')),
	is_correct BOOLEAN NOT NULL,
	time_taken_seconds INTEGER,
	answered_at TIMESTAMP WITH TIME ZONE NOT NULL
);

-- No unique constraint on (learner_id, question_id): repeat attempts are
-- legitimate practice and every attempt counts in analytics.
CREATE INDEX idx_responses_learner_answered ON responses (learner_id, answered_at);
`

const migration003Down = `DROP TABLE IF EXISTS responses;`

const migration004Up = `
CREATE TABLE daily_progress (
	id UUID PRIMARY KEY,
	learner_id UUID NOT NULL REFERENCES learners (id) ON DELETE CASCADE,
	date DATE NOT NULL,
	questions_attempted INTEGER NOT NULL DEFAULT 0,
	questions_correct INTEGER NOT NULL DEFAULT 0,
	accuracy_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_score INTEGER NOT NULL,
	streak_days INTEGER NOT NULL DEFAULT 0,
	listening_accuracy DOUBLE PRECISION,
	grammar_accuracy DOUBLE PRECISION,
	vocabulary_accuracy DOUBLE PRECISION,
	reading_accuracy DOUBLE PRECISION,
	weak_areas JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
	UNIQUE (learner_id, date)
);
`

const migration004Down = `DROP TABLE IF EXISTS daily_progress;`
