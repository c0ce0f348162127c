package model

// StepState represents the execution lifecycle state of a step in a run.
type StepState string

const (
	StepStatePending   StepState = "PENDING"
	StepStateReady     StepState = "READY"
	StepStateRunning   StepState = "RUNNING"
	StepStateSucceeded StepState = "SUCCEEDED"
	StepStateFailed    StepState = "FAILED"
	StepStateSkipped   StepState = "SKIPPED"
)

// String returns the string representation of the step state.
func (s StepState) String() string {
	return string(s)
}

// IsTerminal returns true if the step is in a final state.
func (s StepState) IsTerminal() bool {
	switch s {
	case StepStateSucceeded, StepStateFailed, StepStateSkipped:
		return true
	}
	return false
}

// ValidStepTransitions defines the allowed state transitions for steps.
var ValidStepTransitions = map[StepState][]StepState{
	StepStatePending: {StepStateReady, StepStateSkipped},
	StepStateReady:   {StepStateRunning, StepStateSkipped},
	StepStateRunning: {StepStateSucceeded, StepStateFailed, StepStateSkipped},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s StepState) CanTransitionTo(next StepState) bool {
	for _, allowed := range ValidStepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaskState represents the lifecycle state of a single task.
type TaskState string

const (
	TaskStatePending   TaskState = "PENDING"
	TaskStateRunning   TaskState = "RUNNING"
	TaskStateSucceeded TaskState = "SUCCEEDED"
	TaskStateFailed    TaskState = "FAILED"
	TaskStateSkipped   TaskState = "SKIPPED"
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSucceeded, TaskStateFailed, TaskStateSkipped:
		return true
	}
	return false
}

// ValidTaskTransitions defines the allowed state transitions for tasks.
var ValidTaskTransitions = map[TaskState][]TaskState{
	TaskStatePending: {TaskStateRunning, TaskStateSkipped},
	TaskStateRunning: {TaskStateSucceeded, TaskStateFailed, TaskStateSkipped},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunState represents the lifecycle state of a whole workflow run.
type RunState string

const (
	RunStatePending   RunState = "PENDING"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateFailed    RunState = "FAILED"
	RunStateCancelled RunState = "CANCELLED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}
