// Package variant defines the competing execution identities of an upgrade
// run and the policy that decides how they execute for each step.
package variant

import (
	"context"
	"time"
)

// Variant is a logical execution identity, not a process or thread. It selects
// a workspace and labels results.
type Variant string

const (
	// VariantPrimary executes against the canonical workspace.
	VariantPrimary Variant = "primary"
	// VariantRefiner executes against an isolated workspace and competes
	// with (or refines) the primary's result.
	VariantRefiner Variant = "refiner"
)

// AllVariants returns the known variants in declaration order. This ordering
// is the deterministic tie-break basis used throughout the engine: primary
// always sorts before refiner.
func AllVariants() []Variant {
	return []Variant{VariantPrimary, VariantRefiner}
}

// Step is one intent within a module, executed in declared order.
type Step struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Command     string `yaml:"command,omitempty"`
}

// Module is a named unit of repository scope containing an ordered sequence
// of steps. Immutable once a run starts.
type Module struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Type  string   `yaml:"type,omitempty"` // e.g. "general", "test-heavy"
	Paths []string `yaml:"paths,omitempty"`
	Steps []Step   `yaml:"steps"`
}

// ExecutionRecord captures one underlying command execution for the report.
type ExecutionRecord struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
}

// StepResult is the outcome of one variant executing one step.
// HumanAccuracy is populated post-tournament by the winner resolver and is
// the only field mutated after execution.
type StepResult struct {
	Success       bool              `json:"success"`
	Summary       string            `json:"summary"`
	Detail        string            `json:"detail,omitempty"`
	Score         float64           `json:"score"`
	HumanAccuracy *float64          `json:"humanAccuracy,omitempty"`
	TimedOut      bool              `json:"timedOut,omitempty"`
	TestsPassed   float64           `json:"testsPassed,omitempty"`
	StaticScore   float64           `json:"staticScore,omitempty"`
	Executions    []ExecutionRecord `json:"executions,omitempty"`
}

// ExecutionInput is the bundle passed to a variant execution. PreviousResult
// is populated only in sequential mode and only for non-primary variants.
type ExecutionInput struct {
	Module         Module
	Step           Step
	Variant        Variant
	WorkspaceRoot  string
	PreviousResult *StepResult
}

// Executor produces a StepResult for one ExecutionInput. It is injected by
// the surrounding tooling layer; the engine has no opinion on its internals.
type Executor interface {
	Execute(ctx context.Context, input ExecutionInput) (StepResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, input ExecutionInput) (StepResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, input ExecutionInput) (StepResult, error) {
	return f(ctx, input)
}
