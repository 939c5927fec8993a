// Package runner provides a generic bounded-concurrency batch executor.
// It runs independent work items through a fixed worker pool, records
// per-item status and timing, and reports aggregate throughput.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TaskStatus is the terminal state of one work item.
type TaskStatus string

const (
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
	StatusTimedOut    TaskStatus = "timed-out"
	StatusUnprocessed TaskStatus = "unprocessed"
)

// Task is one independent unit of work.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Fn      func(ctx context.Context) (any, error)
}

// TaskResult records the outcome of one task.
type TaskResult struct {
	TaskID      string
	Name        string
	Status      TaskStatus
	Payload     any
	Err         error
	Attempts    int
	Duration    time.Duration
	StartedAt   time.Time
	CompletedAt time.Time
}

// BatchReport aggregates a batch execution.
type BatchReport struct {
	Results   []TaskResult
	Duration  time.Duration
	Completed int
	Failed    int
	TimedOut  int
	// Throughput is completed tasks per second over the batch duration.
	Throughput float64
}

// Config configures the runner.
type Config struct {
	// MaxConcurrent bounds in-flight tasks. Defaults to 4.
	MaxConcurrent int
	// MaxAttempts retries failed tasks. Defaults to 1 (no retry).
	// Timeouts are not retried.
	MaxAttempts int
}

// Runner executes batches of independent tasks with bounded concurrency.
type Runner struct {
	cfg Config
}

// New constructs a runner, applying defaults to zero config values.
func New(cfg Config) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Runner{cfg: cfg}
}

type indexedTask struct {
	index int
	task  Task
}

// Run executes every task and returns results in submission order. Task
// failures are recorded in results, never returned as an error; the error
// return covers only batch-level problems such as a cancelled context.
func (r *Runner) Run(ctx context.Context, tasks []Task) (*BatchReport, error) {
	report := &BatchReport{}
	if len(tasks) == 0 {
		return report, nil
	}

	start := time.Now()
	results := make([]TaskResult, len(tasks))

	queue := make(chan indexedTask)
	var wg sync.WaitGroup

	workers := r.cfg.MaxConcurrent
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				results[item.index] = r.execute(ctx, item.task)
			}
		}()
	}

	submitted := 0
loop:
	for i, task := range tasks {
		select {
		case queue <- indexedTask{index: i, task: task}:
			submitted++
		case <-ctx.Done():
			break loop
		}
	}
	close(queue)
	wg.Wait()

	for i := range results {
		if results[i].Status == "" {
			results[i] = TaskResult{TaskID: tasks[i].ID, Name: tasks[i].Name, Status: StatusUnprocessed}
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

	if submitted < len(tasks) {
		return report, fmt.Errorf("batch interrupted: %w", ctx.Err())
	}
	return report, nil
}

// execute runs one task with retries and per-attempt timeout.
func (r *Runner) execute(ctx context.Context, task Task) TaskResult {
	result := TaskResult{
		TaskID:    task.ID,
		Name:      task.Name,
		StartedAt: time.Now(),
	}

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		attemptCtx := ctx
		cancel := func() {}
		if task.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		}

		payload, err := task.Fn(attemptCtx)
		cancel()

		if err == nil {
			result.Status = StatusCompleted
			result.Payload = payload
			break
		}

		result.Err = err
		result.Payload = payload
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status = StatusTimedOut
			break
		}
		result.Status = StatusFailed
		if ctx.Err() != nil {
			break
		}
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	recordTask(string(result.Status), result.Duration)
	return result
}
