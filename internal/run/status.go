// Package run holds the per-task execution records: the mutable TaskStatus
// observed while a task runs, and the immutable TaskResult/StepResult
// produced when tasks and steps reach a terminal state.
package run

import (
	"math"
	"sync"
	"time"

	"github.com/me/seqflow/pkg/model"
)

// ProgressListener is notified synchronously, under the status lock, each
// time a task's progress changes. It gives the owning step a read-only
// view of task progress without sharing mutable state.
type ProgressListener func(stepName, taskID string, progress float64)

// TaskStatus is the mutable, thread-safe record of one task's progress,
// counters, description and timing. It is owned exclusively by its task;
// a monitoring caller may read it concurrently while the task writes.
//
// A TaskStatus produces its TaskResult exactly once: the timer can be
// started once and stopped at most once, and a second Finish or
// FinishFault fails with an IllegalStateError.
type TaskStatus struct {
	mu       sync.Mutex
	stepName string
	taskID   string
	listener ProgressListener

	message     string
	description string
	counters    map[string]int64
	progress    float64

	started   bool
	running   bool
	startedAt time.Time
	endedAt   time.Time
	duration  time.Duration

	result *TaskResult
}

// NewTaskStatus creates a status for the given task of the given step.
// listener may be nil.
func NewTaskStatus(stepName, taskID string, listener ProgressListener) *TaskStatus {
	return &TaskStatus{
		stepName: stepName,
		taskID:   taskID,
		listener: listener,
		counters: make(map[string]int64),
	}
}

// StepName returns the name of the step owning this task.
func (s *TaskStatus) StepName() string { return s.stepName }

// TaskID returns the task identifier.
func (s *TaskStatus) TaskID() string { return s.taskID }

// Start begins the lifecycle timer. A second call fails with an
// IllegalStateError.
func (s *TaskStatus) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return model.NewIllegalStateError("task %s: timer already started", s.taskID)
	}
	s.started = true
	s.running = true
	s.startedAt = time.Now()
	return nil
}

// SetProgress sets the task progress. The value must be finite and within
// [0,1]. The registered listener is notified under the same lock used to
// mutate progress, so it always observes a consistent value.
func (s *TaskStatus) SetProgress(value float64) error {
	if err := checkProgress(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return model.NewIllegalStateError("task %s: result already created", s.taskID)
	}
	s.setProgressLocked(value)
	return nil
}

// SetProgressRange sets progress to (value-min)/(max-min). When min == max
// the progress is fixed to 1.0.
func (s *TaskStatus) SetProgressRange(min, max, value int) error {
	if min > max {
		return model.NewInvalidArgumentError("progress range: max (%d) is lower than min (%d)", max, min)
	}
	if value < min {
		return model.NewInvalidArgumentError("progress range: value (%d) is lower than min (%d)", value, min)
	}
	if value > max {
		return model.NewInvalidArgumentError("progress range: value (%d) is greater than max (%d)", value, max)
	}

	if min == max {
		return s.SetProgress(1.0)
	}
	return s.SetProgress(float64(value-min) / float64(max-min))
}

// setProgressLocked stores the progress and notifies the listener. Callers
// must hold s.mu and have validated the value.
func (s *TaskStatus) setProgressLocked(value float64) {
	s.progress = value
	if s.listener != nil {
		s.listener(s.stepName, s.taskID, value)
	}
}

// SetProgressMessage sets the free-text progress message (last write wins).
func (s *TaskStatus) SetProgressMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// SetDescription sets the free-text task description (last write wins).
func (s *TaskStatus) SetDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = description
}

// MergeCounters copies a snapshot of the source's counters into the task's
// counter map. A repeated key overwrites the previous value.
func (s *TaskStatus) MergeCounters(src model.CounterSource) {
	if src == nil {
		return
	}
	for _, name := range src.CounterNames() {
		value := src.Counter(name)
		s.mu.Lock()
		s.counters[name] = value
		s.mu.Unlock()
	}
}

// Progress returns the current progress value.
func (s *TaskStatus) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// ProgressMessage returns the current progress message.
func (s *TaskStatus) ProgressMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Description returns the current task description.
func (s *TaskStatus) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description
}

// Counters returns a snapshot of the counter map.
func (s *TaskStatus) Counters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Result returns the task result, or nil while the task is in flight.
func (s *TaskStatus) Result() *TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Finish stops the lifecycle timer and creates the success or plain
// failure TaskResult. On success the progress is forced to 1.0. A second
// Finish or FinishFault fails with an IllegalStateError and leaves the
// first result untouched.
func (s *TaskStatus) Finish(success bool) (*TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(success); err != nil {
		return nil, err
	}

	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}

	s.result = &TaskResult{
		TaskID:      s.taskID,
		StepName:    s.stepName,
		Success:     success,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Duration:    s.duration,
		Message:     s.message,
		Description: s.description,
		Counters:    counters,
	}
	return s.result, nil
}

// FinishFault stops the lifecycle timer and creates a failure TaskResult
// carrying the captured cause.
func (s *TaskStatus) FinishFault(cause error, message string) (*TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(false); err != nil {
		return nil, err
	}

	s.result = &TaskResult{
		TaskID:    s.taskID,
		StepName:  s.stepName,
		Success:   false,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		Duration:  s.duration,
		Message:   message,
		Cause:     cause,
	}
	return s.result, nil
}

// stopLocked validates the exactly-once contract and stops the timer.
// Stopping is idempotent: the elapsed duration is computed on the first
// stop only. Callers must hold s.mu.
func (s *TaskStatus) stopLocked(success bool) error {
	if s.result != nil {
		return model.NewIllegalStateError("task %s: result already created", s.taskID)
	}
	if !s.started {
		return model.NewIllegalStateError("task %s: timer was never started", s.taskID)
	}
	if s.running {
		s.running = false
		s.endedAt = time.Now()
		s.duration = s.endedAt.Sub(s.startedAt)
	}
	if success {
		s.setProgressLocked(1.0)
	}
	return nil
}

// checkProgress validates a progress value.
func checkProgress(value float64) error {
	if math.IsNaN(value) {
		return model.NewInvalidArgumentError("progress is NaN")
	}
	if math.IsInf(value, 0) {
		return model.NewInvalidArgumentError("progress is infinite")
	}
	if value < 0.0 {
		return model.NewInvalidArgumentError("progress is lower than 0: %g", value)
	}
	if value > 1.0 {
		return model.NewInvalidArgumentError("progress is greater than 1: %g", value)
	}
	return nil
}
