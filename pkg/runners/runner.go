// Package runners implements the pluggable step execution backends:
// shell, task, and container. Each returns a RunResult the executor
// turns into a StepResult; runner failures never abort the pipeline,
// only the step (see spec's propagation policy for RunnerError).
package runners

import "fmt"

// ErrorKind classifies a runner-level failure.
type ErrorKind int

const (
	ErrSpawn ErrorKind = iota
	ErrPull
	ErrCreate
	ErrTimeout
)

// Error is returned for process spawn, image pull, container create/
// start, or timeout failures.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func spawnErr(format string, args ...interface{}) error {
	return &Error{Kind: ErrSpawn, Message: fmt.Sprintf(format, args...)}
}

// RunResult is a runner's raw outcome, before the executor folds in
// logging-command side effects and maps it to a StepResult.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// OutputFunc streams one line of process output as it's produced.
type OutputFunc func(line string, isErr bool)
