package tournament

import (
	"math"
	"testing"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(EvaluatorConfig{}, nil)
}

func candidate(id string, success, tests, static, reward, quality float64) Candidate {
	return Candidate{
		ID:      id,
		Metrics: CandidateMetrics{ExecutionSuccess: success, TestsPassed: tests, StaticAnalysis: static},
		Signals: CandidateSignals{RewardScore: reward, QualityScore: quality},
	}
}

func TestEvaluate_Empty(t *testing.T) {
	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, nil)
	if len(outcome.Ranked) != 0 {
		t.Errorf("Ranked = %v, want empty", outcome.Ranked)
	}
	if len(outcome.Pairwise) != 0 {
		t.Errorf("Pairwise = %v, want empty", outcome.Pairwise)
	}
}

func TestEvaluate_SingleCandidateFastPath(t *testing.T) {
	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, []Candidate{
		candidate("primary", 1, 0.5, 1, 0.3, 0.4),
	})

	if len(outcome.Ranked) != 1 {
		t.Fatalf("Ranked = %d entries, want 1", len(outcome.Ranked))
	}
	top := outcome.Ranked[0]
	if top.HumanAccuracy != 1 {
		t.Errorf("HumanAccuracy = %v, want 1", top.HumanAccuracy)
	}
	if top.Rank != 1 {
		t.Errorf("Rank = %d, want 1", top.Rank)
	}
	if len(outcome.Pairwise) != 0 {
		t.Errorf("Pairwise = %v, want empty on fast path", outcome.Pairwise)
	}
	if top.AggregateScore <= 0 {
		t.Errorf("AggregateScore = %v, want derived from metrics", top.AggregateScore)
	}
}

func TestEvaluate_TwoCandidatesDistinctScores(t *testing.T) {
	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, []Candidate{
		candidate("primary", 1, 0.2, 0.2, 0.2, 0.2),
		candidate("refiner", 1, 0.9, 0.9, 0.9, 0.9),
	})

	if len(outcome.Ranked) != 2 {
		t.Fatalf("Ranked = %d entries, want 2", len(outcome.Ranked))
	}
	if outcome.Ranked[0].CandidateID != "refiner" {
		t.Errorf("top candidate = %s, want refiner", outcome.Ranked[0].CandidateID)
	}
	if outcome.Ranked[0].HumanAccuracy != 1 {
		t.Errorf("winner HumanAccuracy = %v, want 1", outcome.Ranked[0].HumanAccuracy)
	}
	if outcome.Ranked[1].HumanAccuracy != 0 {
		t.Errorf("loser HumanAccuracy = %v, want 0", outcome.Ranked[1].HumanAccuracy)
	}
	if len(outcome.Pairwise) != 2 {
		t.Errorf("Pairwise = %d entries, want 2", len(outcome.Pairwise))
	}
	if delta := outcome.Pairwise["refiner>primary"]; delta <= 0 {
		t.Errorf("Pairwise[refiner>primary] = %v, want positive", delta)
	}
}

func TestEvaluate_TiesKeepDeclarationOrder(t *testing.T) {
	same := candidate("primary", 1, 1, 1, 0.5, 0.5)
	other := same
	other.ID = "refiner"

	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, []Candidate{same, other})
	if outcome.Ranked[0].CandidateID != "primary" {
		t.Errorf("tied top candidate = %s, want primary (declaration order)", outcome.Ranked[0].CandidateID)
	}
}

func TestEvaluate_LinearAccuracyForLargerFields(t *testing.T) {
	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, []Candidate{
		candidate("a", 1, 1, 1, 1, 1),
		candidate("b", 1, 0.5, 0.5, 0.5, 0.5),
		candidate("c", 0, 0, 0, 0, 0),
	})

	wantAccuracy := []float64{1, 0.5, 0}
	for i, want := range wantAccuracy {
		if got := outcome.Ranked[i].HumanAccuracy; math.Abs(got-want) > 1e-9 {
			t.Errorf("Ranked[%d].HumanAccuracy = %v, want %v", i, got, want)
		}
	}
}

func TestEvaluate_TestHeavyWeightsCorrectness(t *testing.T) {
	evaluator := newTestEvaluator()

	// Strong hard metrics, weak reward vs weak hard metrics, strong reward.
	hard := candidate("primary", 1, 1, 1, 0.1, 0.1)
	soft := candidate("refiner", 0, 0.2, 0.2, 1, 1)

	testHeavy := evaluator.Evaluate(ModuleTypeTestHeavy, []Candidate{hard, soft})
	if testHeavy.Ranked[0].CandidateID != "primary" {
		t.Errorf("test-heavy top = %s, want primary (correctness dominates)", testHeavy.Ranked[0].CandidateID)
	}

	general := evaluator.Evaluate(ModuleTypeGeneral, []Candidate{hard, soft})
	hardScore := general.EvaluatorBreakdown["primary"]
	if th := testHeavy.EvaluatorBreakdown["primary"]; th <= hardScore {
		t.Errorf("test-heavy aggregate %v should exceed general %v for a hard-metric candidate", th, hardScore)
	}
}

func TestEvaluate_ScoreComponents(t *testing.T) {
	outcome := newTestEvaluator().Evaluate(ModuleTypeGeneral, []Candidate{
		candidate("primary", 1, 1, 1, 0.8, 0.6),
	})
	top := outcome.Ranked[0]
	if top.CorrectnessScore != 1 {
		t.Errorf("CorrectnessScore = %v, want 1", top.CorrectnessScore)
	}
	if top.LearnedScore != 0.8 {
		t.Errorf("LearnedScore = %v, want 0.8", top.LearnedScore)
	}
	if top.QualityScore != 0.6 {
		t.Errorf("QualityScore = %v, want 0.6", top.QualityScore)
	}
	// aggregate = 0.5*1 + 0.5*((0.6+0.8)/2)
	if want := 0.85; math.Abs(top.AggregateScore-want) > 1e-9 {
		t.Errorf("AggregateScore = %v, want %v", top.AggregateScore, want)
	}
}

func TestWinRateTracker_Adjust(t *testing.T) {
	tracker := NewWinRateTracker()
	base := Weights{Alpha: 0.5, Beta: 0.5}

	// Too few samples: no nudge.
	tracker.RecordWin(ModuleTypeGeneral, "refiner")
	if got := tracker.Adjust(ModuleTypeGeneral, base, "refiner"); got != base {
		t.Errorf("Adjust with %d samples = %v, want base", 1, got)
	}

	for i := 0; i < 7; i++ {
		tracker.RecordWin(ModuleTypeGeneral, "refiner")
	}
	adjusted := tracker.Adjust(ModuleTypeGeneral, base, "refiner")
	if adjusted.Beta <= base.Beta {
		t.Errorf("Beta = %v, want nudged above %v after refiner dominance", adjusted.Beta, base.Beta)
	}
	if adjusted.Beta > base.Beta+maxBetaNudge+1e-9 {
		t.Errorf("Beta = %v, nudge must be capped at %v", adjusted.Beta, maxBetaNudge)
	}
	if sum := adjusted.Alpha + adjusted.Beta; math.Abs(sum-1) > 1e-9 {
		t.Errorf("Alpha+Beta = %v, want normalized 1", sum)
	}

	// Primary-dominated history never nudges.
	primaryHeavy := NewWinRateTracker()
	for i := 0; i < 8; i++ {
		primaryHeavy.RecordWin(ModuleTypeGeneral, "primary")
	}
	if got := primaryHeavy.Adjust(ModuleTypeGeneral, base, "refiner"); got != base {
		t.Errorf("Adjust with primary-heavy history = %v, want base", got)
	}
}

func TestEvaluator_WeightsForUnknownTypeFallsBack(t *testing.T) {
	evaluator := newTestEvaluator()
	got := evaluator.WeightsFor("docs")
	want := DefaultWeights()[ModuleTypeGeneral]
	if got != want {
		t.Errorf("WeightsFor(docs) = %v, want general fallback %v", got, want)
	}
}
