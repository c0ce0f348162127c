// Package steps provides the built-in step implementations: running an
// external tool, merging same-format data elements, and producing a
// counter report. Pipeline-specific steps live with their pipelines and
// implement the same model.Step contract.
package steps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/me/seqflow/pkg/model"
)

// ShellStep runs an external command-line tool once per task, passing the
// task's input element value as the final argument when it is a string.
// The command's standard output becomes the payload of the produced
// output element.
type ShellStep struct {
	name       string
	in         model.InputPorts
	out        model.OutputPorts
	command    string
	args       []string
	configured bool
}

// NewShellStep declares a shell step consuming inFormat one element per
// task and producing outFormat.
func NewShellStep(name string, inFormat, outFormat *model.DataFormat) (*ShellStep, error) {
	inb := model.NewInputPortsBuilder(name)
	if err := inb.AddPort("input", inFormat, false); err != nil {
		return nil, err
	}
	outb := model.NewOutputPortsBuilder(name)
	if err := outb.AddPort("output", outFormat); err != nil {
		return nil, err
	}
	return &ShellStep{name: name, in: inb.Build(), out: outb.Build()}, nil
}

func (s *ShellStep) Name() string    { return s.name }
func (s *ShellStep) Version() string { return "1.0" }

func (s *ShellStep) InputPorts() model.InputPorts   { return s.in }
func (s *ShellStep) OutputPorts() model.OutputPorts { return s.out }

// Requirements reports the configured executable. Before Configure the
// step has nothing to require.
func (s *ShellStep) Requirements() []model.Requirement {
	if s.command == "" {
		return nil
	}
	return []model.Requirement{model.ExecutableRequirement{Executable: s.command}}
}

// Configure binds the "command" parameter (required) and optional
// whitespace-separated "args".
func (s *ShellStep) Configure(params model.Parameters) error {
	if s.configured {
		return model.NewIllegalStateError("step %s is already configured", s.name)
	}
	cmd := params.Get("command", "")
	if cmd == "" {
		return model.NewConfigurationError(s.name, "missing required parameter %q", "command")
	}
	s.command = cmd
	s.args = strings.Fields(params.Get("args", ""))
	s.configured = true
	return nil
}

func (s *ShellStep) Execute(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
	in, err := tc.InputData("input")
	if err != nil {
		return err
	}
	out, err := tc.OutputData("output")
	if err != nil {
		return err
	}
	elements := in.Elements()
	if len(elements) != 1 {
		return fmt.Errorf("shell step %s expects exactly one element per task, got %d", s.name, len(elements))
	}
	el := elements[0]

	status.SetDescription(fmt.Sprintf("%s %s (%s)", s.command, strings.Join(s.args, " "), el.Name))
	status.SetProgressMessage("running " + s.command)

	args := s.args
	if v, ok := el.Value.(string); ok {
		args = append(append([]string{}, s.args...), v)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = tc.WorkDir()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	counters := model.NewCounterSet()
	counters.Set("stdout bytes", int64(stdout.Len()))
	counters.Set("stderr bytes", int64(stderr.Len()))
	if cmd.ProcessState != nil {
		counters.Set("exit code", int64(cmd.ProcessState.ExitCode()))
	}
	status.MergeCounters(counters)

	if runErr != nil {
		return fmt.Errorf("%s failed: %w (stderr: %s)", s.command, runErr, strings.TrimSpace(stderr.String()))
	}

	md := make(map[string]string, len(el.Metadata))
	for k, v := range el.Metadata {
		md[k] = v
	}
	if err := out.AddElement(&model.DataElement{
		Name:     el.Name,
		Value:    stdout.String(),
		Metadata: md,
	}); err != nil {
		return err
	}

	return status.SetProgress(1.0)
}
