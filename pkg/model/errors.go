package model

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid port or parameter setup detected
// before any task runs.
type ConfigurationError struct {
	Step    string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error in step %q: %s", e.Step, e.Message)
}

// NewConfigurationError creates a ConfigurationError for the given step.
func NewConfigurationError(step, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Step: step, Message: fmt.Sprintf(format, args...)}
}

// UnresolvedDependencyError is returned during graph validation when an
// input port has no producer and is not an externally supplied input.
type UnresolvedDependencyError struct {
	Step   string
	Port   string
	Format string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("no producer for input port %q of step %q (format %q)",
		e.Port, e.Step, e.Format)
}

// AmbiguousProducerError is returned during graph validation when more than
// one source can satisfy an input port.
type AmbiguousProducerError struct {
	Step      string
	Port      string
	Format    string
	Producers []string
}

func (e *AmbiguousProducerError) Error() string {
	return fmt.Sprintf("ambiguous producers for input port %q of step %q (format %q): %s",
		e.Port, e.Step, e.Format, strings.Join(e.Producers, ", "))
}

// CyclicWorkflowError is returned during graph validation when the step
// graph contains a cycle. Steps lists the participating step names.
type CyclicWorkflowError struct {
	Steps []string
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("workflow graph contains a cycle involving steps: %s",
		strings.Join(e.Steps, " -> "))
}

// IllegalStateError reports misuse of a lifecycle contract (double start,
// double finalize, reconfiguration after ready). Always fatal to the call.
type IllegalStateError struct {
	Message string
}

func (e *IllegalStateError) Error() string {
	return "illegal state: " + e.Message
}

// NewIllegalStateError creates an IllegalStateError.
func NewIllegalStateError(format string, args ...any) *IllegalStateError {
	return &IllegalStateError{Message: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError reports a malformed argument such as an
// out-of-range or non-finite progress value.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// NewInvalidArgumentError creates an InvalidArgumentError.
func NewInvalidArgumentError(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}
