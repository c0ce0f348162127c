package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

const demoWorkflow = `
name: demo
formats:
  - name: cli-words
    description: input words
  - name: cli-echoed
    description: echoed words
inputs:
  - format: cli-words
    elements:
      - name: s1
        value: hello
        metadata:
          experiment: exp1
      - name: s2
        value: world
        metadata:
          experiment: exp1
steps:
  - name: shout
    kind: shell
    in: cli-words
    out: cli-echoed
    params:
      command: echo
  - name: summary
    kind: report
    in: cli-echoed
`

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	return path
}

// runCLI executes the root command, capturing stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	execErr := root.Execute()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), execErr
}

func TestRunCommand(t *testing.T) {
	wfPath := writeWorkflow(t, demoWorkflow)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	output, err := runCLI(t, "--db", dbPath, "--workers", "2", "run", wfPath)
	if err != nil {
		t.Fatalf("run error: %v\noutput: %s", err, output)
	}
	for _, want := range []string{
		"Status:   SUCCESS",
		"- shout: SUCCEEDED (2 tasks)",
		"- summary: SUCCEEDED (1 tasks)",
		"Counters:",
		"reported elements",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}

	// The persisted run is visible through the status command.
	m := regexp.MustCompile(`Run: (run_\w+)`).FindStringSubmatch(output)
	if m == nil {
		t.Fatalf("no run id in output:\n%s", output)
	}
	runID := m[1]

	listOut, err := runCLI(t, "--db", dbPath, "status")
	if err != nil {
		t.Fatalf("status error: %v\noutput: %s", err, listOut)
	}
	if !strings.Contains(listOut, runID) || !strings.Contains(listOut, "COMPLETED") {
		t.Errorf("expected %s COMPLETED in status output, got:\n%s", runID, listOut)
	}

	showOut, err := runCLI(t, "--db", dbPath, "status", runID)
	if err != nil {
		t.Fatalf("status %s error: %v\noutput: %s", runID, err, showOut)
	}
	for _, want := range []string{"Workflow: demo", "- shout: SUCCEEDED (2 tasks", "Tasks:"} {
		if !strings.Contains(showOut, want) {
			t.Errorf("expected %q in status output, got:\n%s", want, showOut)
		}
	}
}

func TestRunCommand_Failure(t *testing.T) {
	wfPath := writeWorkflow(t, strings.Replace(demoWorkflow, "command: echo", "command: false", 1))

	output, err := runCLI(t, "run", wfPath)
	if err == nil {
		t.Fatalf("run of failing workflow succeeded:\n%s", output)
	}
	for _, want := range []string{
		"Status:   FAILED",
		"- shout: FAILED",
		"- summary: SKIPPED",
		"failed task",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	wfPath := writeWorkflow(t, demoWorkflow)

	output, err := runCLI(t, "validate", wfPath)
	if err != nil {
		t.Fatalf("validate error: %v\noutput: %s", err, output)
	}
	for _, want := range []string{
		"Workflow: demo",
		"Steps: 2",
		"- shout",
		"- summary (after [shout])",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestValidateCommand_UnresolvedInput(t *testing.T) {
	// No workflow input supplies cli-orphan-fmt and nothing produces it.
	wf := `
name: broken
formats:
  - name: cli-orphan-fmt
steps:
  - name: lonely
    kind: report
    in: cli-orphan-fmt
`
	wfPath := writeWorkflow(t, wf)
	output, err := runCLI(t, "validate", wfPath)
	if err == nil {
		t.Fatalf("validate of broken workflow succeeded:\n%s", output)
	}
	if !strings.Contains(err.Error(), "no producer") {
		t.Errorf("error = %v, want unresolved dependency", err)
	}
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, err := runCLI(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("run of missing file succeeded")
	}
}

func TestStatusCommand_RequiresDB(t *testing.T) {
	_, err := runCLI(t, "status")
	if err == nil || !strings.Contains(err.Error(), "--db") {
		t.Errorf("error = %v, want --db requirement", err)
	}
}
