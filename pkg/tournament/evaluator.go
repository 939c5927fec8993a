package tournament

import (
	"fmt"
	"sort"
)

// EvaluatorConfig configures scoring weights.
type EvaluatorConfig struct {
	// Rewards maps module type to alpha/beta reward weights. Missing types
	// fall back to the "general" entry.
	Rewards map[string]Weights
	// Metrics weights the hard metrics inside the correctness score.
	Metrics MetricWeights
	// RefinerID identifies the refiner candidate for win-rate adjustment.
	RefinerID string
}

// Evaluator computes tournament outcomes for candidate sets.
type Evaluator struct {
	cfg      EvaluatorConfig
	winRates *WinRateTracker
}

// NewEvaluator constructs an evaluator. A nil tracker disables win-rate
// weight adjustment.
func NewEvaluator(cfg EvaluatorConfig, winRates *WinRateTracker) *Evaluator {
	if cfg.Rewards == nil {
		cfg.Rewards = DefaultWeights()
	}
	return &Evaluator{cfg: cfg, winRates: winRates}
}

// WeightsFor resolves the effective reward weights for a module type,
// including any win-rate telemetry nudge.
func (e *Evaluator) WeightsFor(moduleType string) Weights {
	base, ok := e.cfg.Rewards[moduleType]
	if !ok {
		base, ok = e.cfg.Rewards[ModuleTypeGeneral]
		if !ok {
			base = Weights{Alpha: 0.5, Beta: 0.5}
		}
	}
	if e.winRates != nil && e.cfg.RefinerID != "" {
		base = e.winRates.Adjust(moduleType, base, e.cfg.RefinerID)
	}
	return base
}

// RecordWin feeds a tournament winner back into the win-rate telemetry.
func (e *Evaluator) RecordWin(moduleType, candidateID string) {
	e.winRates.RecordWin(moduleType, candidateID)
}

// Evaluate ranks the candidates for one logical task. A single candidate
// takes the fast path: full accuracy, no pairwise comparison. With two or
// more, candidates are ranked descending by aggregate score; ties keep
// declaration order so results stay deterministic.
func (e *Evaluator) Evaluate(moduleType string, candidates []Candidate) *Outcome {
	outcome := &Outcome{
		Pairwise:           make(map[string]float64),
		EvaluatorBreakdown: make(map[string]float64),
	}
	if len(candidates) == 0 {
		return outcome
	}

	weights := e.WeightsFor(moduleType)

	scored := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, e.score(c, weights))
	}

	if len(scored) == 1 {
		// Fast path: no meaningful self-comparison exists.
		scored[0].Rank = 1
		scored[0].HumanAccuracy = 1
		outcome.Ranked = scored
		outcome.EvaluatorBreakdown[scored[0].CandidateID] = scored[0].AggregateScore
		return outcome
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].AggregateScore > scored[j].AggregateScore
	})

	last := len(scored) - 1
	for i := range scored {
		scored[i].Rank = i + 1
		// 1 for the top candidate, 0 for the bottom, linear in between.
		scored[i].HumanAccuracy = float64(last-i) / float64(last)
		outcome.EvaluatorBreakdown[scored[i].CandidateID] = scored[i].AggregateScore
	}

	for i := range scored {
		for j := range scored {
			if i == j {
				continue
			}
			key := fmt.Sprintf("%s>%s", scored[i].CandidateID, scored[j].CandidateID)
			outcome.Pairwise[key] = scored[i].AggregateScore - scored[j].AggregateScore
		}
	}

	outcome.Ranked = scored
	return outcome
}

// score blends one candidate's metrics and signals into an aggregate.
func (e *Evaluator) score(c Candidate, weights Weights) RankedCandidate {
	correctness := weightedMean([]weightedValue{
		{c.Metrics.ExecutionSuccess, e.cfg.Metrics.ExecutionSuccess},
		{c.Metrics.TestsPassed, e.cfg.Metrics.TestsPassed},
		{c.Metrics.StaticAnalysis, e.cfg.Metrics.StaticAnalysis},
	})
	quality := clamp01(c.Signals.QualityScore)
	learned := clamp01(c.Signals.RewardScore)
	evaluator := (quality + learned) / 2

	aggregate := weights.Alpha*correctness + weights.Beta*evaluator

	return RankedCandidate{
		CandidateID:      c.ID,
		AggregateScore:   aggregate,
		CorrectnessScore: correctness,
		QualityScore:     quality,
		LearnedScore:     learned,
		EvaluatorScore:   evaluator,
	}
}

type weightedValue struct {
	value  float64
	weight float64
}

func weightedMean(values []weightedValue) float64 {
	total := 0.0
	earned := 0.0
	for _, v := range values {
		weight := v.weight
		if weight <= 0 {
			weight = 1
		}
		total += weight
		earned += weight * clamp01(v.value)
	}
	if total == 0 {
		return 0
	}
	return earned / total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
