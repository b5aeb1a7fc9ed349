package pyext

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/magefile/mage/sh"
)

// Test seams for process spawning.
var (
	execCommandContext = exec.CommandContext
	execLookPath       = exec.LookPath
)

// Command describes one child process invocation.
type Command struct {
	Path string   // Executable name or path
	Args []string // Arguments, not including Path
	Dir  string   // Working directory
	Env  []string // KEY=VALUE pairs added to the inherited environment
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// ProcessResult is the structured outcome of a child process that ran.
type ProcessResult struct {
	Command  Command
	ExitCode int
	Output   []string
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (r *ProcessResult) Success() bool {
	return r.ExitCode == 0
}

// Runner executes child processes.
//
// Run blocks until the process exits. A process that ran and exited non-zero
// is not an error: the status is reported in ProcessResult.ExitCode. An error
// is returned only when the process could not be started or the context was
// canceled.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*ProcessResult, error)
}

// ExecRunner runs commands with os/exec, capturing combined stdout and stderr.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, c Command) (*ProcessResult, error) {
	start := time.Now()

	//nolint:gosec // Command comes from the build configuration
	cmd := execCommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	output, err := cmd.CombinedOutput()
	result := &ProcessResult{
		Command:  c,
		Output:   splitOutput(output),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("failed to run %s: %w", c.Path, err)
		}

		result.ExitCode = sh.ExitStatus(err)
		if result.ExitCode == 0 || !sh.CmdRan(err) {
			// Terminated by a signal.
			result.ExitCode = -1
		}
	}

	return result, nil
}

func splitOutput(output []byte) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
