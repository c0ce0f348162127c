package run

import (
	"time"
)

// TaskResult is the immutable terminal outcome of one task, produced
// exactly once by its TaskStatus. Counters is private to the result: the
// map is copied at creation and must not be mutated afterwards.
type TaskResult struct {
	TaskID      string
	StepName    string
	Success     bool
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	Message     string
	Description string
	Counters    map[string]int64
	Cause       error
}

// TaskFailure records one failed task's cause inside a StepResult.
type TaskFailure struct {
	TaskID  string
	Message string
	Cause   error
}

// StepResult aggregates all task results of one step. It is written
// exactly once, by the coordinating goroutine, after every task of the
// step is terminal.
type StepResult struct {
	StepName  string
	Success   bool
	TaskCount int

	// Counters is the key-wise sum over the successful tasks' counters.
	// Failed tasks contribute their failure cause, not their counters.
	Counters map[string]int64

	// Duration is the summed task duration (not wall time).
	Duration time.Duration

	Failures []TaskFailure
}

// NewStepResult aggregates the given task results. Success is true iff
// every task succeeded and at least the aggregation saw no failures.
func NewStepResult(stepName string, results []*TaskResult) *StepResult {
	sr := &StepResult{
		StepName:  stepName,
		Success:   true,
		TaskCount: len(results),
		Counters:  make(map[string]int64),
	}

	for _, r := range results {
		sr.Duration += r.Duration
		if !r.Success {
			sr.Success = false
			sr.Failures = append(sr.Failures, TaskFailure{
				TaskID:  r.TaskID,
				Message: r.Message,
				Cause:   r.Cause,
			})
			continue
		}
		for k, v := range r.Counters {
			sr.Counters[k] += v
		}
	}

	return sr
}
