package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/me/seqflow/pkg/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, r *Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", r.ID)

	countersJSON, err := json.Marshal(r.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, state, workers, counters, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Workflow, string(r.State), r.Workers, string(countersJSON),
		r.CreatedAt.UTC().Format(time.RFC3339Nano), nullableTime(r.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, r *Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", r.ID)

	countersJSON, err := json.Marshal(r.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET workflow = ?, state = ?, workers = ?, counters = ?, completed_at = ?
		 WHERE id = ?`,
		r.Workflow, string(r.State), r.Workers, string(countersJSON),
		nullableTime(r.CompletedAt), r.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", r.ID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, state, workers, counters, created_at, completed_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow, state, workers, counters, created_at, completed_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Step records ---

func (s *SQLiteStore) SaveStepRecord(ctx context.Context, rec *StepRecord) error {
	s.logger.Debug("sql", "op", "upsert", "table", "step_records",
		"run_id", rec.RunID, "step", rec.StepName)

	countersJSON, err := json.Marshal(rec.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	failuresJSON, err := json.Marshal(rec.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO step_records (run_id, step_name, state, success, task_count, counters, duration_ns, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, step_name) DO UPDATE SET
		   state = excluded.state, success = excluded.success, task_count = excluded.task_count,
		   counters = excluded.counters, duration_ns = excluded.duration_ns, failures = excluded.failures`,
		rec.RunID, rec.StepName, string(rec.State), boolToInt(rec.Success), rec.TaskCount,
		string(countersJSON), int64(rec.Duration), string(failuresJSON),
	)
	return err
}

func (s *SQLiteStore) ListStepRecords(ctx context.Context, runID string) ([]*StepRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "step_records", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_name, state, success, task_count, counters, duration_ns, failures
		 FROM step_records WHERE run_id = ? ORDER BY step_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*StepRecord
	for rows.Next() {
		var rec StepRecord
		var state, countersJSON, failuresJSON string
		var success int
		var durationNS int64
		if err := rows.Scan(&rec.RunID, &rec.StepName, &state, &success, &rec.TaskCount,
			&countersJSON, &durationNS, &failuresJSON); err != nil {
			return nil, err
		}
		rec.State = model.StepState(state)
		rec.Success = success != 0
		rec.Duration = durationFromNS(durationNS)
		if err := json.Unmarshal([]byte(countersJSON), &rec.Counters); err != nil {
			return nil, fmt.Errorf("unmarshal counters: %w", err)
		}
		if err := json.Unmarshal([]byte(failuresJSON), &rec.Failures); err != nil {
			return nil, fmt.Errorf("unmarshal failures: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// --- Task records ---

func (s *SQLiteStore) SaveTaskRecord(ctx context.Context, rec *TaskRecord) error {
	s.logger.Debug("sql", "op", "upsert", "table", "task_records",
		"run_id", rec.RunID, "task_id", rec.TaskID)

	countersJSON, err := json.Marshal(rec.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_records (run_id, task_id, step_name, success, started_at, ended_at, duration_ns, message, description, counters, failure)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, task_id) DO UPDATE SET
		   success = excluded.success, started_at = excluded.started_at, ended_at = excluded.ended_at,
		   duration_ns = excluded.duration_ns, message = excluded.message,
		   description = excluded.description, counters = excluded.counters, failure = excluded.failure`,
		rec.RunID, rec.TaskID, rec.StepName, boolToInt(rec.Success),
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.EndedAt.UTC().Format(time.RFC3339Nano),
		int64(rec.Duration), rec.Message, rec.Description, string(countersJSON), rec.Failure,
	)
	return err
}

func (s *SQLiteStore) ListTaskRecords(ctx context.Context, runID string) ([]*TaskRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "task_records", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, task_id, step_name, success, started_at, ended_at, duration_ns, message, description, counters, failure
		 FROM task_records WHERE run_id = ? ORDER BY step_name, task_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var startedAt, endedAt, countersJSON string
		var success int
		var durationNS int64
		if err := rows.Scan(&rec.RunID, &rec.TaskID, &rec.StepName, &success,
			&startedAt, &endedAt, &durationNS, &rec.Message, &rec.Description,
			&countersJSON, &rec.Failure); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		rec.Duration = durationFromNS(durationNS)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
		if err := json.Unmarshal([]byte(countersJSON), &rec.Counters); err != nil {
			return nil, fmt.Errorf("unmarshal counters: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var state, countersJSON, createdAt string
	var completedAt sql.NullString

	if err := row.Scan(&r.ID, &r.Workflow, &state, &r.Workers, &countersJSON,
		&createdAt, &completedAt); err != nil {
		return nil, err
	}
	r.State = model.RunState(state)
	if err := json.Unmarshal([]byte(countersJSON), &r.Counters); err != nil {
		return nil, fmt.Errorf("unmarshal counters: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func durationFromNS(ns int64) time.Duration {
	return time.Duration(ns)
}
