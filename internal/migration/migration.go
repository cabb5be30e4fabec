package migration

import (
	"context"

	"warpmine/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.1.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSchemaVersionTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	if err := r.createHistoryTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create history_entries table")
	}

	if err := r.addHistoryDurationColumn(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add history_entries.duration_ms")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}

	return nil
}

func (r *MigrationRunner) createSchemaVersionTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version VARCHAR(32) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createHistoryTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS history_entries (
			key TEXT PRIMARY KEY,
			ts TIMESTAMP WITH TIME ZONE NOT NULL,
			request_id VARCHAR(64) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			request JSONB,
			result JSONB,
			error TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

// duration_ms was added after the first release of the table
func (r *MigrationRunner) addHistoryDurationColumn(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'history_entries' AND column_name = 'duration_ms'
			) THEN
				ALTER TABLE history_entries ADD COLUMN duration_ms BIGINT NOT NULL DEFAULT 0;
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_history_entries_ts ON history_entries(ts)",
		"CREATE INDEX IF NOT EXISTS idx_history_entries_kind_ts ON history_entries(kind, ts)",
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, r.version)
	return err
}
