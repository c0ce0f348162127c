package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/me/seqflow/pkg/model"
)

// Task is one schedulable execution of a step against one unit of data.
// A task belongs to its step for its entire lifetime and owns exactly one
// TaskStatus and, eventually, exactly one TaskResult.
type Task struct {
	ID      string
	Step    model.Step
	Element *model.DataElement // nil for a whole-step task
	Status  *TaskStatus
}

// NewTask creates a task for the given step. element is the single data
// element this task processes, or nil when the step runs as one task.
func NewTask(step model.Step, element *model.DataElement, listener ProgressListener) *Task {
	id := "task_" + uuid.New().String()[:8]
	return &Task{
		ID:      id,
		Step:    step,
		Element: element,
		Status:  NewTaskStatus(step.Name(), id, listener),
	}
}

// Execute runs the step's work for this task and always produces a
// TaskResult. A non-nil error return from the step, or an escaping panic,
// is captured into a failed result; it never propagates to the caller.
func (t *Task) Execute(ctx context.Context, tc model.TaskContext, logger *slog.Logger) *TaskResult {
	if err := t.Status.Start(); err != nil {
		// A task is executed once; a started timer means the harness
		// itself is broken.
		res, _ := t.Status.FinishFault(err, err.Error())
		return res
	}

	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("task panicked: %v", r)
				logger.Error("task panic recovered", "task_id", t.ID, "step", t.Step.Name(), "panic", r)
			}
		}()
		execErr = t.Step.Execute(ctx, tc, t.Status)
	}()

	if execErr != nil {
		res, err := t.Status.FinishFault(execErr, execErr.Error())
		if err != nil {
			// The step finalized its own status; keep the first result.
			logger.Warn("task already finalized", "task_id", t.ID, "error", err)
			return t.Status.Result()
		}
		return res
	}

	res, err := t.Status.Finish(true)
	if err != nil {
		logger.Warn("task already finalized", "task_id", t.ID, "error", err)
		return t.Status.Result()
	}
	return res
}
