package model

import (
	"fmt"
	"os"
	"os/exec"
)

// Requirement is an external precondition a step declares before it may
// execute, e.g. an executable on PATH or an environment variable. The
// graph builder consults requirements when a step leaves "configured"; an
// unavailable requirement fails the step before any task is scheduled.
type Requirement interface {
	Name() string
	IsAvailable() bool
}

// ExecutableRequirement requires an executable to be resolvable on PATH.
type ExecutableRequirement struct {
	Executable string
}

func (r ExecutableRequirement) Name() string {
	return fmt.Sprintf("executable %q on PATH", r.Executable)
}

func (r ExecutableRequirement) IsAvailable() bool {
	_, err := exec.LookPath(r.Executable)
	return err == nil
}

// EnvVarRequirement requires a non-empty environment variable.
type EnvVarRequirement struct {
	Key string
}

func (r EnvVarRequirement) Name() string {
	return fmt.Sprintf("environment variable %q", r.Key)
}

func (r EnvVarRequirement) IsAvailable() bool {
	return os.Getenv(r.Key) != ""
}
