package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boshang1988/arena/pkg/variant"
)

// CommandExecutor is the reference step executor: it runs each step's
// configured shell command inside the variant's workspace and scores from
// the exit status. Steps without a command pass vacuously with a neutral
// score.
type CommandExecutor struct {
	Manager *Manager
	// Timeout bounds each command; zero means the step context alone bounds it.
	Timeout time.Duration
}

// Execute implements variant.Executor.
func (e *CommandExecutor) Execute(ctx context.Context, input variant.ExecutionInput) (variant.StepResult, error) {
	if input.Step.Command == "" {
		return variant.StepResult{
			Success: true,
			Summary: fmt.Sprintf("%s: no command configured", input.Step.Name),
			Score:   0.5,
		}, nil
	}

	cmdResult, err := e.Manager.RunInWorkspace(ctx, input.Variant, input.Step.Command, e.Timeout)
	if err != nil {
		return variant.StepResult{}, err
	}

	success := cmdResult.ExitCode == 0 && !cmdResult.TimedOut
	result := variant.StepResult{
		Success:  success,
		Summary:  commandSummary(input.Step, cmdResult),
		Detail:   strings.TrimSpace(cmdResult.Stdout + "\n" + cmdResult.Stderr),
		TimedOut: cmdResult.TimedOut,
		Executions: []variant.ExecutionRecord{{
			Command:  cmdResult.Command,
			Output:   cmdResult.Stdout,
			Duration: cmdResult.Duration,
			Success:  success,
		}},
	}
	if success {
		result.Score = 1.0
		result.TestsPassed = 1.0
	}
	return result, nil
}

func commandSummary(step variant.Step, cmdResult CommandResult) string {
	switch {
	case cmdResult.TimedOut:
		return fmt.Sprintf("%s: timed out after %s", step.Name, cmdResult.Duration.Round(time.Millisecond))
	case cmdResult.ExitCode != 0:
		return fmt.Sprintf("%s: exit %d", step.Name, cmdResult.ExitCode)
	default:
		return fmt.Sprintf("%s: ok", step.Name)
	}
}
