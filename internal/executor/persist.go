package executor

import (
	"context"
	"time"

	"github.com/me/seqflow/internal/run"
	"github.com/me/seqflow/internal/store"
	"github.com/me/seqflow/pkg/model"
)

// Persistence is best-effort: a store failure is logged and never blocks
// or fails the run itself.

func (e *Executor) persistRunStart(ctx context.Context, runID string, startedAt time.Time) {
	if e.store == nil {
		return
	}
	rec := &store.Run{
		ID:        runID,
		Workflow:  e.workflow,
		State:     model.RunStateRunning,
		Workers:   e.workers,
		CreatedAt: startedAt,
	}
	if err := e.store.CreateRun(ctx, rec); err != nil {
		e.logger.Error("persist run start", "run_id", runID, "error", err)
	}
}

func (e *Executor) persistRunEnd(ctx context.Context, runID string, startedAt time.Time, res *Result) {
	if e.store == nil {
		return
	}
	state := model.RunStateCompleted
	switch {
	case res.Cancelled:
		state = model.RunStateCancelled
	case !res.Success:
		state = model.RunStateFailed
	}
	completedAt := time.Now()
	rec := &store.Run{
		ID:          runID,
		Workflow:    e.workflow,
		State:       state,
		Workers:     e.workers,
		Counters:    res.Counters,
		CreatedAt:   startedAt,
		CompletedAt: &completedAt,
	}
	if err := e.store.UpdateRun(ctx, rec); err != nil {
		e.logger.Error("persist run end", "run_id", runID, "error", err)
	}
}

func (e *Executor) persistStepRecord(ctx context.Context, runID string, sr *stepRun) {
	if e.store == nil {
		return
	}
	rec := &store.StepRecord{
		RunID:    runID,
		StepName: sr.node.Name(),
		State:    sr.state,
	}
	if sr.result != nil {
		rec.Success = sr.result.Success
		rec.TaskCount = sr.result.TaskCount
		rec.Counters = sr.result.Counters
		rec.Duration = sr.result.Duration
		for _, f := range sr.result.Failures {
			rec.Failures = append(rec.Failures, f.TaskID+": "+f.Message)
		}
	}
	if err := e.store.SaveStepRecord(ctx, rec); err != nil {
		e.logger.Error("persist step record", "run_id", runID, "step", sr.node.Name(), "error", err)
	}
}

func (e *Executor) persistTaskRecord(ctx context.Context, runID string, res *run.TaskResult) {
	if e.store == nil {
		return
	}
	rec := &store.TaskRecord{
		RunID:       runID,
		TaskID:      res.TaskID,
		StepName:    res.StepName,
		Success:     res.Success,
		StartedAt:   res.StartedAt,
		EndedAt:     res.EndedAt,
		Duration:    res.Duration,
		Message:     res.Message,
		Description: res.Description,
		Counters:    res.Counters,
	}
	if res.Cause != nil {
		rec.Failure = res.Cause.Error()
	}
	if err := e.store.SaveTaskRecord(ctx, rec); err != nil {
		e.logger.Error("persist task record", "run_id", runID, "task_id", res.TaskID, "error", err)
	}
}
