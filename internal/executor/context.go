package executor

import (
	"fmt"

	"github.com/me/seqflow/pkg/model"
)

// taskContext is the per-task view of input and output data handed to a
// step's Execute. Input data is frozen upstream output (or workflow
// input); output data is the step's shared collector, safe for concurrent
// appends from fanned-out sibling tasks.
type taskContext struct {
	params  model.Parameters
	inputs  map[string]*model.Data
	outputs map[string]*model.Data
	workDir string
}

func (tc *taskContext) InputData(port string) (*model.Data, error) {
	d, ok := tc.inputs[port]
	if !ok {
		return nil, fmt.Errorf("no data bound to input port %q", port)
	}
	return d, nil
}

func (tc *taskContext) OutputData(port string) (*model.Data, error) {
	d, ok := tc.outputs[port]
	if !ok {
		return nil, fmt.Errorf("no data bound to output port %q", port)
	}
	return d, nil
}

func (tc *taskContext) Parameters() model.Parameters { return tc.params }

func (tc *taskContext) WorkDir() string { return tc.workDir }
