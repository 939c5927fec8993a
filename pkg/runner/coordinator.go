package runner

import (
	"context"
	"time"
)

// Coordinator layers failure policy on top of the runner. With
// ContinueOnFailure, every task runs and all results are returned, failures
// included. Without it, tasks run one at a time in submission order and the
// first failure stops the batch: its result is kept and every remaining task
// is reported unprocessed without being attempted.
type Coordinator struct {
	runner            *Runner
	continueOnFailure bool
}

// NewCoordinator constructs a coordinator over a runner.
func NewCoordinator(r *Runner, continueOnFailure bool) *Coordinator {
	return &Coordinator{runner: r, continueOnFailure: continueOnFailure}
}

// RunAll executes the batch under the configured failure policy.
func (c *Coordinator) RunAll(ctx context.Context, tasks []Task) (*BatchReport, error) {
	if c.continueOnFailure {
		return c.runner.Run(ctx, tasks)
	}
	return c.runHaltingOnFailure(ctx, tasks)
}

func (c *Coordinator) runHaltingOnFailure(ctx context.Context, tasks []Task) (*BatchReport, error) {
	report := &BatchReport{}
	if len(tasks) == 0 {
		return report, nil
	}

	start := time.Now()
	results := make([]TaskResult, 0, len(tasks))

	halted := -1
	for i, task := range tasks {
		if ctx.Err() != nil {
			halted = i
			break
		}
		result := c.runner.execute(ctx, task)
		results = append(results, result)
		if result.Status != StatusCompleted {
			halted = i + 1
			break
		}
	}

	if halted >= 0 {
		for _, task := range tasks[halted:] {
			results = append(results, TaskResult{TaskID: task.ID, Name: task.Name, Status: StatusUnprocessed})
		}
	}

	report.Results = results
	report.Duration = time.Since(start)
	for _, result := range results {
		switch result.Status {
		case StatusCompleted:
			report.Completed++
		case StatusFailed:
			report.Failed++
		case StatusTimedOut:
			report.TimedOut++
		}
	}
	if secs := report.Duration.Seconds(); secs > 0 {
		report.Throughput = float64(report.Completed) / secs
	}
	return report, nil
}
