package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/me/seqflow/pkg/model"
)

func configuredShellStep(t *testing.T, params model.Parameters) *ShellStep {
	t.Helper()
	s, err := NewShellStep("tool", fmtIn, fmtOut)
	if err != nil {
		t.Fatalf("new shell step: %v", err)
	}
	if err := s.Configure(params); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return s
}

func TestShellStepRunsCommand(t *testing.T) {
	s := configuredShellStep(t, model.Parameters{"command": "echo", "args": "-n prefix"})

	in := inputData(t, fmtIn,
		&model.DataElement{Name: "s1", Value: "hello", Metadata: map[string]string{"sample": "s1"}})
	tc, status := newTestContext(t, s, in)

	if err := s.Execute(context.Background(), tc, status); err != nil {
		t.Fatalf("execute: %v", err)
	}

	els := tc.outputs["output"].Elements()
	if len(els) != 1 {
		t.Fatalf("output elements = %d, want 1", len(els))
	}
	if got := els[0].Value.(string); got != "prefix hello" {
		t.Errorf("stdout payload = %q, want \"prefix hello\"", got)
	}
	if els[0].Name != "s1" || els[0].MetadataValue("sample") != "s1" {
		t.Errorf("element identity not carried over: %+v", els[0])
	}

	counters := status.Counters()
	if counters["exit code"] != 0 {
		t.Errorf("exit code = %d, want 0", counters["exit code"])
	}
	if counters["stdout bytes"] != int64(len("prefix hello")) {
		t.Errorf("stdout bytes = %d", counters["stdout bytes"])
	}
	if status.Progress() != 1.0 {
		t.Errorf("progress = %g, want 1.0", status.Progress())
	}
}

func TestShellStepCommandFails(t *testing.T) {
	s := configuredShellStep(t, model.Parameters{"command": "false"})

	in := inputData(t, fmtIn, &model.DataElement{Name: "s1", Value: "x"})
	tc, status := newTestContext(t, s, in)

	err := s.Execute(context.Background(), tc, status)
	if err == nil {
		t.Fatal("execute succeeded for a failing command")
	}
	if !strings.Contains(err.Error(), "false failed") {
		t.Errorf("error = %v", err)
	}
	if status.Counters()["exit code"] == 0 {
		t.Error("exit code counter not recorded")
	}
	if tc.outputs["output"].Len() != 0 {
		t.Error("failed command produced output elements")
	}
}

func TestShellStepRejectsMultipleElements(t *testing.T) {
	s := configuredShellStep(t, model.Parameters{"command": "echo"})

	in := inputData(t, fmtIn,
		&model.DataElement{Name: "s1", Value: "a"},
		&model.DataElement{Name: "s2", Value: "b"})
	tc, status := newTestContext(t, s, in)

	if err := s.Execute(context.Background(), tc, status); err == nil {
		t.Fatal("execute accepted a multi-element task")
	}
}

func TestShellStepConfigure(t *testing.T) {
	s, err := NewShellStep("tool", fmtIn, fmtOut)
	if err != nil {
		t.Fatalf("new shell step: %v", err)
	}
	if got := s.Requirements(); got != nil {
		t.Errorf("requirements before configure = %v, want nil", got)
	}

	err = s.Configure(nil)
	var cerr *model.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for missing command, got %v", err)
	}

	s2 := configuredShellStep(t, model.Parameters{"command": "echo"})
	reqs := s2.Requirements()
	if len(reqs) != 1 || !reqs[0].IsAvailable() {
		t.Errorf("requirements = %v, want available echo", reqs)
	}

	err = s2.Configure(model.Parameters{"command": "cat"})
	var serr *model.IllegalStateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected IllegalStateError on reconfigure, got %v", err)
	}
}
