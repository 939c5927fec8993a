package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/boshang1988/arena/pkg/variant"
)

// killGrace is how long a timed-out command's process tree gets to die
// before the run stops waiting for it.
const killGrace = 2 * time.Second

// CommandResult captures one shell command execution inside a workspace.
// Failures are inspected here rather than raised: the exit code and output
// are always populated, and the error slot covers only setup problems.
type CommandResult struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// RunInWorkspace executes a shell command rooted at the variant's workspace
// path. A non-zero exit or a timeout is reported through the result, never
// as an error; the only error case is an unknown workspace.
//
// The command runs in its own process group and a timeout kills the whole
// group, so backgrounded children cannot hold the run past its budget.
func (m *Manager) RunInWorkspace(ctx context.Context, v variant.Variant, command string, timeout time.Duration) (CommandResult, error) {
	info, ok := m.Workspace(v)
	if !ok {
		return CommandResult{}, fmt.Errorf("no workspace for variant %s", v)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result := CommandResult{Command: command}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = info.Path
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		result.Duration = time.Since(start)
		result.ExitCode = -1
		result.Stderr = err.Error()
		return result, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = forceKill(cmd)
		select {
		case runErr = <-done:
		case <-time.After(killGrace):
			// Something in the tree escaped the group kill; stop waiting.
			runErr = ctx.Err()
		}
	}

	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = runErr.Error()
			}
		}
	}

	return result, nil
}
