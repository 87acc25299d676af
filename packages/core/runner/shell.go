package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellResult represents the result of a shell command execution
type ShellResult struct {
	Command  string
	Output   string
	ExitCode int
	Duration time.Duration
	Passed   bool
	// TimedOut is set when the command hit its own timeout.
	TimedOut bool
	// Canceled is set when the run was stopped while the command ran.
	Canceled bool
	Error    error
}

// executeShellCommand runs a single command through the configured shell.
func (r *Runner) executeShellCommand(ctx context.Context, command, dir string, env []string, timeout time.Duration) *ShellResult {
	result := &ShellResult{
		Command: command,
		Passed:  true,
	}

	cmdStr := strings.TrimSpace(command)
	if cmdStr == "" {
		return result
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, r.shell(), "-c", cmdStr)
	execCmd.Dir = dir
	execCmd.Env = env
	// Children of the shell may keep the output pipe open after a kill.
	execCmd.WaitDelay = time.Second

	start := time.Now()
	output, err := execCmd.CombinedOutput()
	result.Duration = time.Since(start)
	result.Output = string(output)

	if err == nil {
		return result
	}

	result.Passed = false
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
		result.Error = fmt.Errorf("command timed out after %s", timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		result.Canceled = true
		result.ExitCode = -1
		result.Error = fmt.Errorf("command canceled: %w", ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Error = fmt.Errorf("command exited with status %d", result.ExitCode)
	default:
		result.ExitCode = -1
		result.Error = fmt.Errorf("running command: %w", err)
	}

	return result
}

func (r *Runner) shell() string {
	if r.config.Shell != "" {
		return r.config.Shell
	}
	return DefaultShell
}
