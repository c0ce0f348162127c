package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all seqflow tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		workflow     TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL DEFAULT 'PENDING',
		workers      INTEGER NOT NULL DEFAULT 1,
		counters     TEXT NOT NULL DEFAULT '{}',
		created_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS step_records (
		run_id     TEXT NOT NULL,
		step_name  TEXT NOT NULL,
		state      TEXT NOT NULL,
		success    INTEGER NOT NULL DEFAULT 0,
		task_count INTEGER NOT NULL DEFAULT 0,
		counters   TEXT NOT NULL DEFAULT '{}',
		duration_ns INTEGER NOT NULL DEFAULT 0,
		failures   TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, step_name)
	)`,

	`CREATE TABLE IF NOT EXISTS task_records (
		run_id      TEXT NOT NULL,
		task_id     TEXT NOT NULL,
		step_name   TEXT NOT NULL,
		success     INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL DEFAULT '',
		ended_at    TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL DEFAULT 0,
		message     TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		counters    TEXT NOT NULL DEFAULT '{}',
		failure     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, task_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_step_records_run_id ON step_records(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_records_run_id ON task_records(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_task_records_step ON task_records(run_id, step_name)`,
}

// migrate applies the schema statements in order.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
