// Package store persists workflow runs and their step/task results so a
// monitoring caller can inspect an engine's history after the fact.
package store

import (
	"context"
	"time"

	"github.com/me/seqflow/pkg/model"
)

// Run is the persisted record of one workflow execution.
type Run struct {
	ID          string           `json:"id"`
	Workflow    string           `json:"workflow"`
	State       model.RunState   `json:"state"`
	Workers     int              `json:"workers"`
	Counters    map[string]int64 `json:"counters,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// StepRecord is the persisted terminal outcome of one step in a run.
type StepRecord struct {
	RunID     string           `json:"run_id"`
	StepName  string           `json:"step_name"`
	State     model.StepState  `json:"state"`
	Success   bool             `json:"success"`
	TaskCount int              `json:"task_count"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Failures  []string         `json:"failures,omitempty"`
}

// TaskRecord is the persisted terminal outcome of one task in a run.
type TaskRecord struct {
	RunID       string           `json:"run_id"`
	TaskID      string           `json:"task_id"`
	StepName    string           `json:"step_name"`
	Success     bool             `json:"success"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     time.Time        `json:"ended_at"`
	Duration    time.Duration    `json:"duration"`
	Message     string           `json:"message,omitempty"`
	Description string           `json:"description,omitempty"`
	Counters    map[string]int64 `json:"counters,omitempty"`
	Failure     string           `json:"failure,omitempty"`
}

// Store defines the persistence layer for seqflow run records.
type Store interface {
	CreateRun(ctx context.Context, r *Run) error
	UpdateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)

	SaveStepRecord(ctx context.Context, rec *StepRecord) error
	ListStepRecords(ctx context.Context, runID string) ([]*StepRecord, error)

	SaveTaskRecord(ctx context.Context, rec *TaskRecord) error
	ListTaskRecords(ctx context.Context, runID string) ([]*TaskRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
