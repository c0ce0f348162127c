package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Workers != 4 || cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `
workers: 8
db_path: /var/lib/seqflow/runs.db
work_dir: /tmp/seqflow
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Workers)
	}
	if cfg.DBPath != "/var/lib/seqflow/runs.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	// Unset keys keep their defaults.
	if cfg.Addr != ":8080" || cfg.LogFormat != "text" {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadClampsWorkers(t *testing.T) {
	path := writeFile(t, "config.yaml", "workers: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("workers = %d, want 1", cfg.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("load of missing file succeeded")
	}
}

func TestLoadWorkflow(t *testing.T) {
	path := writeFile(t, "workflow.yaml", `
name: rnaseq
formats:
  - name: reads
    description: raw sequencing reads
  - name: filtered-reads
inputs:
  - format: reads
    elements:
      - name: s1
        value: sample1.fastq
        metadata:
          experiment: exp1
steps:
  - name: filter
    kind: shell
    in: reads
    out: filtered-reads
    params:
      command: filterreads
  - name: summary
    kind: report
    in: filtered-reads
`)
	wf, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("load workflow: %v", err)
	}
	if wf.Name != "rnaseq" {
		t.Errorf("name = %q", wf.Name)
	}
	if len(wf.Formats) != 2 || wf.Formats[0].Name != "reads" {
		t.Errorf("formats = %+v", wf.Formats)
	}
	if len(wf.Inputs) != 1 || wf.Inputs[0].Elements[0].Metadata["experiment"] != "exp1" {
		t.Errorf("inputs = %+v", wf.Inputs)
	}
	if len(wf.Steps) != 2 || wf.Steps[0].Params["command"] != "filterreads" {
		t.Errorf("steps = %+v", wf.Steps)
	}
}

func TestLoadWorkflowValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "steps:\n  - name: filter\n    kind: shell\n"},
		{"no steps", "name: empty\n"},
		{"unnamed step", "name: wf\nsteps:\n  - kind: shell\n"},
		{"step without kind", "name: wf\nsteps:\n  - name: filter\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "workflow.yaml", tt.content)
			if _, err := LoadWorkflow(path); err == nil {
				t.Error("invalid workflow loaded")
			}
		})
	}
}
