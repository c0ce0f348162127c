package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkflowFile is the YAML definition the CLI assembles a workflow from.
type WorkflowFile struct {
	Name    string      `yaml:"name"`
	Formats []FormatDef `yaml:"formats"`
	Inputs  []InputDef  `yaml:"inputs"`
	Steps   []StepDef   `yaml:"steps"`
}

// FormatDef declares a data format used by the workflow.
type FormatDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// InputDef supplies the initial data for one format.
type InputDef struct {
	Format   string       `yaml:"format"`
	Elements []ElementDef `yaml:"elements"`
}

// ElementDef is one named data element with optional metadata.
type ElementDef struct {
	Name     string            `yaml:"name"`
	Value    string            `yaml:"value"`
	Metadata map[string]string `yaml:"metadata"`
}

// StepDef declares one step of the workflow.
//
// Kind selects the built-in implementation: "shell", "merge" or "report".
type StepDef struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	In     string            `yaml:"in"`  // input format name
	Out    string            `yaml:"out"` // output format name (shell only)
	Params map[string]string `yaml:"params"`
}

// LoadWorkflow reads and minimally validates a workflow definition file.
func LoadWorkflow(path string) (*WorkflowFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	var wf WorkflowFile
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	if wf.Name == "" {
		return nil, fmt.Errorf("workflow %s: missing name", path)
	}
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow %s: no steps", path)
	}
	for i, s := range wf.Steps {
		if s.Name == "" {
			return nil, fmt.Errorf("workflow %s: step %d has no name", path, i)
		}
		if s.Kind == "" {
			return nil, fmt.Errorf("workflow %s: step %q has no kind", path, s.Name)
		}
	}
	return &wf, nil
}
