package steps

import (
	"testing"

	"github.com/me/seqflow/internal/run"
	"github.com/me/seqflow/pkg/model"
)

var (
	fmtIn  = model.MustRegisterFormat("steps-test-in", "")
	fmtOut = model.MustRegisterFormat("steps-test-out", "")
)

// testTaskContext binds input and output data by port name.
type testTaskContext struct {
	inputs  map[string]*model.Data
	outputs map[string]*model.Data
	params  model.Parameters
	workDir string
}

func (c *testTaskContext) InputData(port string) (*model.Data, error) {
	d, ok := c.inputs[port]
	if !ok {
		return nil, model.NewConfigurationError("", "unknown input port %q", port)
	}
	return d, nil
}

func (c *testTaskContext) OutputData(port string) (*model.Data, error) {
	d, ok := c.outputs[port]
	if !ok {
		return nil, model.NewConfigurationError("", "unknown output port %q", port)
	}
	return d, nil
}

func (c *testTaskContext) Parameters() model.Parameters { return c.params }
func (c *testTaskContext) WorkDir() string              { return c.workDir }

func newTestContext(t *testing.T, step model.Step, in *model.Data) (*testTaskContext, *run.TaskStatus) {
	t.Helper()
	tc := &testTaskContext{
		inputs:  map[string]*model.Data{},
		outputs: map[string]*model.Data{},
		workDir: t.TempDir(),
	}
	for _, p := range step.InputPorts().Ports() {
		tc.inputs[p.Name()] = in
	}
	for _, p := range step.OutputPorts().Ports() {
		tc.outputs[p.Name()] = model.NewData(step.Name()+"/"+p.Name(), p.Format())
	}
	status := run.NewTaskStatus(step.Name(), "task_test", nil)
	if err := status.Start(); err != nil {
		t.Fatalf("start status: %v", err)
	}
	return tc, status
}

func inputData(t *testing.T, format *model.DataFormat, elements ...*model.DataElement) *model.Data {
	t.Helper()
	d := model.NewData("workflow/input", format)
	for _, el := range elements {
		if err := d.AddElement(el); err != nil {
			t.Fatalf("add element: %v", err)
		}
	}
	d.Finalize()
	return d
}
