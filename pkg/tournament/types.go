// Package tournament ranks competing variant results for a single step using
// a weighted blend of hard metrics, quality signals, and a learned reward
// score, then resolves exactly one winner.
package tournament

// CandidateMetrics are the hard, deterministic measurements for a candidate.
// Each value is boolean-as-float or fractional in [0,1].
type CandidateMetrics struct {
	ExecutionSuccess float64
	TestsPassed      float64
	StaticAnalysis   float64
}

// CandidateSignals are the softer quality inputs.
type CandidateSignals struct {
	// RewardScore is the learned reward-model signal in [0,1].
	RewardScore float64
	// QualityScore is the step executor's own quality estimate in [0,1].
	QualityScore float64
}

// Candidate is the normalized evaluator input, one per variant that produced
// a step result.
type Candidate struct {
	ID      string
	Metrics CandidateMetrics
	Signals CandidateSignals
}

// RankedCandidate is one row of a tournament outcome.
type RankedCandidate struct {
	CandidateID      string  `json:"candidateId"`
	AggregateScore   float64 `json:"aggregateScore"`
	HumanAccuracy    float64 `json:"humanAccuracy"`
	Rank             int     `json:"rank"`
	CorrectnessScore float64 `json:"correctnessScore"`
	QualityScore     float64 `json:"qualityScore"`
	LearnedScore     float64 `json:"learnedScore"`
	EvaluatorScore   float64 `json:"evaluatorScore"`
}

// Outcome is computed fresh per step and never persisted across steps.
type Outcome struct {
	Ranked             []RankedCandidate  `json:"ranked"`
	Pairwise           map[string]float64 `json:"pairwise"`
	EvaluatorBreakdown map[string]float64 `json:"evaluatorBreakdown"`
}
