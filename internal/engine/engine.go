// Package engine runs a single agent task against a language model and
// returns its text result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Task is a fully rendered task definition. Every {{placeholder}} has been
// substituted by the time a Task reaches an Executor.
type Task struct {
	Name           string
	Role           string
	Goal           string
	Backstory      string
	Description    string
	ExpectedOutput string
}

// Persona returns the system prompt describing the agent performing t.
func (t Task) Persona() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", strings.TrimSpace(t.Role))
	if g := strings.TrimSpace(t.Goal); g != "" {
		fmt.Fprintf(&b, "\nYour goal: %s", g)
	}
	if bs := strings.TrimSpace(t.Backstory); bs != "" {
		fmt.Fprintf(&b, "\n%s", bs)
	}
	return b.String()
}

// Prompt returns the user prompt for t.
func (t Task) Prompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Description))
	if eo := strings.TrimSpace(t.ExpectedOutput); eo != "" {
		fmt.Fprintf(&b, "\n\nExpected output: %s", eo)
	}
	return b.String()
}

// Validate checks that t has the fields every executor requires.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Role) == "" {
		return errors.New("engine: task has no role")
	}
	if strings.TrimSpace(t.Description) == "" {
		return errors.New("engine: task has no description")
	}
	return nil
}

// Executor runs one task and returns its non-empty text result.
type Executor interface {
	Execute(ctx context.Context, task Task) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task Task) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (string, error) {
	return f(ctx, task)
}

// ExecutionError reports a failure of the upstream model service.
type ExecutionError struct {
	Task       string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("engine: ")
	if e.Task != "" {
		fmt.Fprintf(&b, "task %s: ", e.Task)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "status %d: ", e.StatusCode)
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError reports whether err wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
