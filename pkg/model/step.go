package model

import (
	"context"
	"strconv"
)

// Parameters is the opaque key/value configuration of a step, resolved
// before execution. The engine never interprets parameter values.
type Parameters map[string]string

// Get returns the value for key, or def when absent.
func (p Parameters) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetInt returns the integer value for key, or def when absent or malformed.
func (p Parameters) GetInt(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Has reports whether key is set.
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// TaskContext gives a running task access to its input and output data by
// port name, plus its resolved parameters and a scratch directory. The
// engine does not interpret element payloads, only their presence and
// metadata.
type TaskContext interface {
	// InputData returns the data bound to the named input port. For a
	// single-cardinality port of a fanned-out step, the returned data
	// holds exactly the one element this task processes.
	InputData(port string) (*Data, error)

	// OutputData returns the data collector for the named output port.
	// Elements added here become visible to downstream steps only after
	// every task of the step has succeeded.
	OutputData(port string) (*Data, error)

	// Parameters returns the step's resolved configuration.
	Parameters() Parameters

	// WorkDir returns a per-task scratch directory.
	WorkDir() string
}

// StatusReporter is the mutable in-flight progress record a task writes
// to while executing. It is safe for concurrent use: a monitoring caller
// may read progress while the task updates it.
type StatusReporter interface {
	// SetProgress sets the task progress. The value must be finite and
	// within [0,1]; anything else fails with an InvalidArgumentError.
	SetProgress(value float64) error

	// SetProgressRange sets progress as (value-min)/(max-min). When
	// min == max the progress is fixed to 1.0.
	SetProgressRange(min, max, value int) error

	// SetProgressMessage sets the free-text progress message.
	SetProgressMessage(message string)

	// SetDescription sets the free-text task description.
	SetDescription(description string)

	// MergeCounters copies a snapshot of the source's counters into the
	// task's counter map. A repeated key overwrites, it does not add.
	MergeCounters(src CounterSource)
}

// Step is the contract every workflow step implements. Step kinds are
// dispatched through this interface only; there is no inheritance chain.
type Step interface {
	// Name returns the step name, unique within a workflow.
	Name() string

	// Version returns the step implementation version.
	Version() string

	// InputPorts returns the declared input ports.
	InputPorts() InputPorts

	// OutputPorts returns the declared output ports.
	OutputPorts() OutputPorts

	// Requirements returns the external preconditions that must be
	// satisfiable before the step may run. Meaningful after Configure.
	Requirements() []Requirement

	// Configure binds the step's parameters. Calling Configure again
	// after the step has been built into a graph fails with an
	// IllegalStateError.
	Configure(params Parameters) error

	// Execute performs one task's worth of work. The executor calls it
	// once per task and converts a non-nil error or an escaping panic
	// into a failed task result; it never crashes a pool worker.
	Execute(ctx context.Context, tc TaskContext, status StatusReporter) error
}
