// Package exec runs external tools as subprocesses with bounded execution time.
package exec

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a command outlives its timeout.
var ErrTimeout = errors.New("command timed out")

// ErrNotFound is returned when the executable cannot be located.
var ErrNotFound = errors.New("executable not found")

// Executor defines the interface for executing commands.
type Executor interface {
	// Run executes a command with the given options and returns the result.
	// A non-zero exit is reported in Result.ExitCode, not as an error.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// LookPath resolves an executable the way Run would.
	LookPath(name string) (string, error)

	// Name returns the executor name for logging.
	Name() string
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format).
	Env []string

	// WorkDir is the working directory for the command.
	WorkDir string

	// Timeout is the maximum duration for command execution. Zero means no limit.
	Timeout time.Duration
}

// Result contains the result of command execution.
type Result struct {
	// Stdout contains the standard output.
	Stdout string

	// Stderr contains the standard error output.
	Stderr string

	// Duration is how long the command took to execute.
	Duration time.Duration

	// ExitCode is the exit code of the command.
	ExitCode int
}

// DefaultExecOpts returns default execution options.
func DefaultExecOpts() Opts {
	return Opts{Timeout: time.Minute}
}
