// Package executor runs shell commands locally or on a remote appliance with
// an enforced wall-clock deadline.
//
// Every call produces exactly one outcome: a *Result when the command exits
// with status 0, or one of *ExitError, *TimeoutError, *SpawnError. A command
// is never retried.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultKillGrace is how long a timed-out command gets between the interrupt
// and the kill.
const DefaultKillGrace = 5 * time.Second

// Executor knows how to run a command and return its merged output.
type Executor interface {
	// Execute runs command through a shell. A zero timeout means no deadline.
	Execute(ctx context.Context, command string, timeout time.Duration) (*Result, error)
}

// Result is the outcome of a command that exited with status 0.
type Result struct {
	Command  string
	Output   string // stdout and stderr merged
	ExitCode int
	Duration time.Duration
}

// SpawnError means the command could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("command '%s' could not be started: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the command ran and exited with a non-zero status.
// ExitCode is -1 when the process was killed by a signal.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command '%s' returned non-zero exit status %d", e.Command, e.ExitCode)
}

// TimeoutError means the deadline expired and the command was terminated.
// Output holds whatever the command wrote before it was stopped.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Output  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command '%s' timed out after %s", e.Command, e.Timeout)
}

// Output returns the captured output carried by err, if any.
func Output(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Output
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Output
	}
	return ""
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
