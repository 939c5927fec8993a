package upgrade

import (
	"fmt"
	"strings"
	"time"

	"github.com/boshang1988/arena/pkg/tournament"
	"github.com/boshang1988/arena/pkg/variant"
	"github.com/boshang1988/arena/pkg/workspace"
)

// Status is the terminal state of a run, module, or step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepReport records one step's outcome across all variants.
type StepReport struct {
	Step        variant.Step                           `json:"step"`
	Status      Status                                 `json:"status"`
	Winner      variant.Variant                        `json:"winner,omitempty"`
	Result      variant.StepResult                     `json:"result"`
	Results     map[variant.Variant]variant.StepResult `json:"results,omitempty"`
	Outcome     *tournament.Outcome                    `json:"outcome,omitempty"`
	MergeMethod workspace.MergeMethod                  `json:"mergeMethod,omitempty"`
	Error       string                                 `json:"error,omitempty"`
}

// ModuleReport records one module's outcome.
type ModuleReport struct {
	ModuleID string        `json:"moduleId"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Steps    []StepReport  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Report is the complete outcome of one run.
type Report struct {
	RunID     string         `json:"runId"`
	Mode      string         `json:"mode"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Status    Status         `json:"status"`
	Modules   []ModuleReport `json:"modules"`
}

// Markdown renders the report as a human-readable summary.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("## Upgrade Report\n\n")
	b.WriteString(fmt.Sprintf("**Run:** %s\n", r.RunID))
	b.WriteString(fmt.Sprintf("**Mode:** %s\n", r.Mode))
	b.WriteString(fmt.Sprintf("**Status:** %s\n", r.Status))
	b.WriteString(fmt.Sprintf("**Duration:** %s\n\n", r.Duration.Round(time.Millisecond)))

	completed, failed, skipped := 0, 0, 0
	for _, mod := range r.Modules {
		switch mod.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}

	b.WriteString("### Summary\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|--------|-------|\n")
	b.WriteString(fmt.Sprintf("| Modules | %d |\n", len(r.Modules)))
	b.WriteString(fmt.Sprintf("| Completed | %d |\n", completed))
	b.WriteString(fmt.Sprintf("| Failed | %d |\n", failed))
	b.WriteString(fmt.Sprintf("| Skipped | %d |\n", skipped))
	b.WriteString("\n")

	for _, mod := range r.Modules {
		b.WriteString(fmt.Sprintf("### %s (%s)\n\n", mod.Name, mod.Status))
		b.WriteString("| Step | Status | Winner | Merge | Notes |\n")
		b.WriteString("|------|--------|--------|-------|-------|\n")
		for _, step := range mod.Steps {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				step.Step.Name,
				statusMark(step.Status),
				string(step.Winner),
				string(step.MergeMethod),
				stepNotes(step)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func statusMark(s Status) string {
	switch s {
	case StatusCompleted:
		return "✓"
	case StatusFailed:
		return "✗"
	default:
		return "skipped"
	}
}

func stepNotes(step StepReport) string {
	parts := make([]string, 0, 3)
	if step.Error != "" {
		parts = append(parts, step.Error)
	}
	if step.Winner != "" {
		parts = append(parts, fmt.Sprintf("score: %.2f", step.Result.Score))
	}
	if step.Outcome != nil && len(step.Outcome.Ranked) > 1 {
		ranks := make([]string, 0, len(step.Outcome.Ranked))
		for _, rc := range step.Outcome.Ranked {
			ranks = append(ranks, fmt.Sprintf("%s=%.2f", rc.CandidateID, rc.AggregateScore))
		}
		parts = append(parts, strings.Join(ranks, " "))
	}
	return strings.Join(parts, "; ")
}
