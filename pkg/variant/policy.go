package variant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boshang1988/arena/pkg/telemetry"
)

// PolicyConfig controls per-step execution behavior.
type PolicyConfig struct {
	// Parallel requests concurrent variant execution when eligible.
	Parallel bool
	// StepTimeout bounds each variant execution; zero means no bound.
	StepTimeout time.Duration
}

// ExecutionPolicy decides, per step, whether variants run sequentially
// (refiner sees primary's result as context) or in parallel (independent,
// workspace-isolated).
type ExecutionPolicy struct {
	executor Executor
	hub      *telemetry.Hub
	cfg      PolicyConfig
}

// NewExecutionPolicy constructs a policy around the injected step executor.
func NewExecutionPolicy(executor Executor, hub *telemetry.Hub, cfg PolicyConfig) *ExecutionPolicy {
	return &ExecutionPolicy{executor: executor, hub: hub, cfg: cfg}
}

// CanRunVariantsParallel reports whether the step's variants may execute
// concurrently. Requires more than one declared variant, a parallel request,
// and a distinct workspace root per variant: a refiner sharing the primary's
// root cannot safely run concurrently against the same files.
func (p *ExecutionPolicy) CanRunVariantsParallel(def ModeDefinition, roots map[Variant]string) bool {
	if len(def.Variants) < 2 || !p.cfg.Parallel {
		return false
	}
	seen := make(map[string]struct{}, len(def.Variants))
	for _, v := range def.Variants {
		root, ok := roots[v]
		if !ok || root == "" {
			return false
		}
		if _, dup := seen[root]; dup {
			return false
		}
		seen[root] = struct{}{}
	}
	return true
}

// ExecuteStep runs the step for every declared variant that has a workspace
// root and returns one result per variant that ran. Variants without a root
// are absent from the returned set.
func (p *ExecutionPolicy) ExecuteStep(ctx context.Context, def ModeDefinition, module Module, step Step, roots map[Variant]string, runID string) (*ResultSet, error) {
	if p.executor == nil {
		return nil, errors.New("no step executor configured")
	}

	if p.CanRunVariantsParallel(def, roots) {
		return p.executeParallel(ctx, def, module, step, roots, runID)
	}
	return p.executeSequential(ctx, def, module, step, roots)
}

// executeSequential runs variants one completely before the next starts.
// The primary's result is carried forward so later variants can build on or
// critique it.
func (p *ExecutionPolicy) executeSequential(ctx context.Context, def ModeDefinition, module Module, step Step, roots map[Variant]string) (*ResultSet, error) {
	results := NewResultSet()
	var previous *StepResult

	for _, v := range def.Variants {
		root, ok := roots[v]
		if !ok || root == "" {
			continue
		}
		input := ExecutionInput{
			Module:        module,
			Step:          step,
			Variant:       v,
			WorkspaceRoot: root,
		}
		if v != VariantPrimary {
			input.PreviousResult = previous
		}

		result := p.runVariant(ctx, input)
		results.Set(v, result)
		if v == VariantPrimary {
			carried := result
			previous = &carried
		}
	}

	return results, nil
}

// executeParallel dispatches all eligible variants at once. No variant sees
// another's result; that is the point of true independent competition.
func (p *ExecutionPolicy) executeParallel(ctx context.Context, def ModeDefinition, module Module, step Step, roots map[Variant]string, runID string) (*ResultSet, error) {
	p.hub.Publish(telemetry.Event{
		Type:     telemetry.EventStepParallel,
		RunID:    runID,
		ModuleID: module.ID,
		Step:     step.Name,
		Data: map[string]any{
			"variants": len(def.Variants),
		},
	})

	results := NewResultSet()
	g, gctx := errgroup.WithContext(ctx)

	for _, v := range def.Variants {
		input := ExecutionInput{
			Module:        module,
			Step:          step,
			Variant:       v,
			WorkspaceRoot: roots[v],
		}
		g.Go(func() error {
			results.Set(input.Variant, p.runVariant(gctx, input))
			// Failures are recorded, not propagated: a refiner error must
			// not cancel the primary's in-flight sibling.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// runVariant invokes the executor with the configured timeout and converts
// executor errors into failed results rather than raising them.
func (p *ExecutionPolicy) runVariant(ctx context.Context, input ExecutionInput) StepResult {
	if p.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.StepTimeout)
		defer cancel()
	}

	result, err := p.executor.Execute(ctx, input)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		summary := fmt.Sprintf("%s execution failed", input.Variant)
		if timedOut {
			summary = fmt.Sprintf("%s execution timed out", input.Variant)
		}
		return StepResult{
			Success:  false,
			Summary:  summary,
			Detail:   err.Error(),
			TimedOut: timedOut,
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !result.Success {
		result.TimedOut = true
	}
	return result
}
