// Package upgrade drives a full run: modules and steps through the variant
// execution policy, tournament ranking, winner resolution, and workspace
// merge, producing one report per run.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/boshang1988/arena/pkg/config"
	"github.com/boshang1988/arena/pkg/runner"
	"github.com/boshang1988/arena/pkg/telemetry"
	"github.com/boshang1988/arena/pkg/tournament"
	"github.com/boshang1988/arena/pkg/variant"
	"github.com/boshang1988/arena/pkg/workspace"
)

// errModuleFailed marks a module task as failed for the coordinator while
// its report travels in the task payload.
var errModuleFailed = errors.New("module failed")

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Options wires an orchestrator. Config, Workspaces, and Executor are
// required; Evaluator defaults to one built from the config's reward
// weights, RunID to a fresh ULID, Hub to none.
type Options struct {
	Config     *config.Config
	Workspaces *workspace.Manager
	Executor   variant.Executor
	Evaluator  *tournament.Evaluator
	Hub        *telemetry.Hub
	RunID      string
}

// Orchestrator owns one run. All state is run-local; construct a fresh one
// per run and discard it afterwards.
type Orchestrator struct {
	cfg        *config.Config
	workspaces *workspace.Manager
	policy     *variant.ExecutionPolicy
	evaluator  *tournament.Evaluator
	hub        *telemetry.Hub
	runID      string
	def        variant.ModeDefinition
}

// New validates the options and builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Workspaces == nil {
		return nil, errors.New("workspace manager is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("step executor is required")
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	if opts.Evaluator == nil {
		opts.Evaluator = tournament.NewEvaluator(tournament.EvaluatorConfig{
			Rewards:   opts.Config.Rewards,
			Metrics:   opts.Config.Metrics,
			RefinerID: string(variant.VariantRefiner),
		}, tournament.NewWinRateTracker())
	}

	policy := variant.NewExecutionPolicy(opts.Executor, opts.Hub, variant.PolicyConfig{
		Parallel:    opts.Config.Parallel,
		StepTimeout: opts.Config.StepTimeout,
	})

	return &Orchestrator{
		cfg:        opts.Config,
		workspaces: opts.Workspaces,
		policy:     policy,
		evaluator:  opts.Evaluator,
		hub:        opts.Hub,
		runID:      opts.RunID,
		def:        opts.Config.ResolvedMode().Definition(),
	}, nil
}

// RunID returns the run's identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes every configured module and returns the run report. Module
// and step failures land in the report, not the error; the error covers only
// batch-level interruption. Workspace cleanup always runs and never alters
// the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:     o.runID,
		Mode:      o.def.Name,
		StartedAt: started,
		Status:    StatusCompleted,
	}

	o.publish(telemetry.EventRunStarted, "", "", map[string]any{
		"mode":    o.def.Name,
		"modules": len(o.cfg.Modules),
	})
	defer o.workspaces.Cleanup()

	if err := o.workspaces.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize workspaces: %w", err)
	}

	tasks := make([]runner.Task, len(o.cfg.Modules))
	for i, module := range o.cfg.Modules {
		module := module
		tasks[i] = runner.Task{
			ID:   module.ID,
			Name: module.Name,
			Fn: func(ctx context.Context) (any, error) {
				return o.runModule(ctx, module)
			},
		}
	}

	// Module jobs share the run's per-variant workspaces, and multi-variant
	// modes merge into the one canonical workspace at every step boundary.
	// Concurrent module jobs are therefore only sound when the mode runs a
	// single variant in place; dual modes execute modules sequentially.
	concurrency := 1
	if o.cfg.ParallelModules && len(o.def.Variants) == 1 {
		concurrency = o.cfg.MaxConcurrent
	}
	pool := runner.New(runner.Config{MaxConcurrent: concurrency})
	batch, batchErr := runner.NewCoordinator(pool, o.cfg.ContinueOnFailure).RunAll(ctx, tasks)

	for i, result := range batch.Results {
		if mr, ok := result.Payload.(*ModuleReport); ok && mr != nil {
			report.Modules = append(report.Modules, *mr)
			continue
		}
		skipped := skippedModuleReport(o.cfg.Modules[i])
		report.Modules = append(report.Modules, skipped)
		o.publish(telemetry.EventModuleSkipped, skipped.ModuleID, "", nil)
	}

	for _, mr := range report.Modules {
		if mr.Status != StatusCompleted {
			report.Status = StatusFailed
			break
		}
	}
	report.Duration = time.Since(started)

	if report.Status == StatusCompleted {
		o.publish(telemetry.EventRunCompleted, "", "", map[string]any{"duration": report.Duration.String()})
	} else {
		o.publish(telemetry.EventRunFailed, "", "", map[string]any{"duration": report.Duration.String()})
	}
	return report, batchErr
}

// runModule executes the module's steps in declared order. After a step
// failure without continue-on-failure, remaining steps are reported skipped
// without executing.
func (o *Orchestrator) runModule(ctx context.Context, module variant.Module) (*ModuleReport, error) {
	started := time.Now()
	mr := &ModuleReport{
		ModuleID: module.ID,
		Name:     module.Name,
		Status:   StatusCompleted,
	}
	o.publish(telemetry.EventModuleStarted, module.ID, "", nil)

	for _, step := range module.Steps {
		if mr.Status == StatusFailed && !o.cfg.ContinueOnFailure {
			mr.Steps = append(mr.Steps, StepReport{Step: step, Status: StatusSkipped})
			continue
		}
		sr := o.runStep(ctx, module, step)
		mr.Steps = append(mr.Steps, sr)
		if sr.Status == StatusFailed {
			mr.Status = StatusFailed
		}
	}

	mr.Duration = time.Since(started)
	recordModule(string(mr.Status))
	if mr.Status == StatusFailed {
		o.publish(telemetry.EventModuleFailed, module.ID, "", nil)
		return mr, errModuleFailed
	}
	o.publish(telemetry.EventModuleCompleted, module.ID, "", nil)
	return mr, nil
}

// runStep runs one step for every variant the mode declares, ranks the
// results, merges the winner, and records the outcome. Failures are captured
// in the step report.
func (o *Orchestrator) runStep(ctx context.Context, module variant.Module, step variant.Step) StepReport {
	sr := StepReport{Step: step, Status: StatusCompleted}
	o.publish(telemetry.EventStepStarted, module.ID, step.Name, nil)

	for _, v := range o.def.Variants {
		if _, err := o.workspaces.CreateVariantWorkspace(v); err != nil {
			return o.failStep(module, sr, fmt.Sprintf("workspace for %s: %v", v, err))
		}
	}
	roots := o.workspaces.WorkspaceRoots()

	results, err := o.policy.ExecuteStep(ctx, o.def, module, step, roots, o.runID)
	if err != nil {
		return o.failStep(module, sr, err.Error())
	}

	var outcome *tournament.Outcome
	if o.def.Tournament && results.Len() > 0 {
		outcome = o.evaluator.Evaluate(moduleType(module), o.candidates(results))
	}

	decision, err := tournament.ResolveWinner(o.def, results, outcome, nil)
	if err != nil {
		return o.failStep(module, sr, err.Error())
	}
	if o.def.Tournament && results.Len() > 1 {
		o.evaluator.RecordWin(moduleType(module), string(decision.Variant))
	}

	merge, err := o.workspaces.ApplyWinnerChanges(decision.Variant)
	if err != nil {
		return o.failStep(module, sr, fmt.Sprintf("merge %s: %v", decision.Variant, err))
	}

	// Step boundary: losing variants' changes are discarded and every
	// workspace restarts from the winning result, so the next step builds
	// on it and rejected changes can never reach a later merge.
	if err := o.workspaces.SyncVariantWorkspaces(); err != nil {
		return o.failStep(module, sr, fmt.Sprintf("sync workspaces: %v", err))
	}

	sr.Winner = decision.Variant
	sr.Result = decision.Winner
	sr.Results = resultMap(results)
	sr.Outcome = outcome
	sr.MergeMethod = merge.Method
	if !decision.Winner.Success {
		sr.Status = StatusFailed
	}

	o.publish(telemetry.EventWinnerSelected, module.ID, step.Name, map[string]any{
		"winner": string(decision.Variant),
		"score":  decision.Winner.Score,
	})
	o.publish(telemetry.EventStepCompleted, module.ID, step.Name, map[string]any{
		"status": string(sr.Status),
	})
	recordStep(string(sr.Status), string(decision.Variant), string(merge.Method))
	return sr
}

func (o *Orchestrator) failStep(module variant.Module, sr StepReport, detail string) StepReport {
	sr.Status = StatusFailed
	sr.Error = detail
	o.publish(telemetry.EventStepCompleted, module.ID, sr.Step.Name, map[string]any{
		"status": string(StatusFailed),
		"error":  detail,
	})
	recordStep(string(StatusFailed), "", "")
	return sr
}

// candidates normalizes step results into evaluator input, in declared
// variant order. The executor reports one scalar score; it feeds both the
// learned and quality signal slots.
func (o *Orchestrator) candidates(results *variant.ResultSet) []tournament.Candidate {
	var candidates []tournament.Candidate
	for _, v := range o.def.Variants {
		res, ok := results.Get(v)
		if !ok {
			continue
		}
		success := 0.0
		if res.Success {
			success = 1.0
		}
		candidates = append(candidates, tournament.Candidate{
			ID: string(v),
			Metrics: tournament.CandidateMetrics{
				ExecutionSuccess: success,
				TestsPassed:      res.TestsPassed,
				StaticAnalysis:   res.StaticScore,
			},
			Signals: tournament.CandidateSignals{
				RewardScore:  res.Score,
				QualityScore: res.Score,
			},
		})
	}
	return candidates
}

func (o *Orchestrator) publish(eventType telemetry.EventType, moduleID, step string, data map[string]any) {
	o.hub.Publish(telemetry.Event{
		Type:     eventType,
		RunID:    o.runID,
		ModuleID: moduleID,
		Step:     step,
		Data:     data,
	})
}

func moduleType(module variant.Module) string {
	if module.Type == "" {
		return tournament.ModuleTypeGeneral
	}
	return module.Type
}

func resultMap(results *variant.ResultSet) map[variant.Variant]variant.StepResult {
	out := make(map[variant.Variant]variant.StepResult, results.Len())
	for _, v := range results.Variants() {
		if res, ok := results.Get(v); ok {
			out[v] = res
		}
	}
	return out
}

func skippedModuleReport(module variant.Module) ModuleReport {
	mr := ModuleReport{ModuleID: module.ID, Name: module.Name, Status: StatusSkipped}
	for _, step := range module.Steps {
		mr.Steps = append(mr.Steps, StepReport{Step: step, Status: StatusSkipped})
	}
	return mr
}
