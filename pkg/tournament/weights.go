package tournament

import "sync"

// Weights blends the hard-metric component (Alpha) with the learned/quality
// component (Beta) of the aggregate score.
type Weights struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

// MetricWeights sets the relative weight of each hard metric inside the
// correctness score. Non-positive weights count as 1.
type MetricWeights struct {
	ExecutionSuccess float64 `yaml:"execution_success"`
	TestsPassed      float64 `yaml:"tests_passed"`
	StaticAnalysis   float64 `yaml:"static_analysis"`
}

// Module types with dedicated reward weights. Test-heavy modules weight
// correctness far higher; general modules lean on the reward signal.
const (
	ModuleTypeGeneral   = "general"
	ModuleTypeTestHeavy = "test-heavy"
)

// DefaultWeights returns the built-in per-module-type reward weights.
func DefaultWeights() map[string]Weights {
	return map[string]Weights{
		ModuleTypeGeneral:   {Alpha: 0.5, Beta: 0.5},
		ModuleTypeTestHeavy: {Alpha: 0.8, Beta: 0.2},
	}
}

const (
	// winRateMinSamples is how many recorded tournaments a module type needs
	// before win-rate telemetry starts nudging its weights.
	winRateMinSamples = 4
	// maxBetaNudge bounds how far telemetry can move beta from its base.
	maxBetaNudge = 0.15
)

// WinRateTracker records which candidate won each tournament per module type
// and nudges beta upward for types that historically favor the refiner.
// Nudges are a pure function of the recorded history, so evaluation stays
// deterministic for a given run transcript.
type WinRateTracker struct {
	mu     sync.RWMutex
	totals map[string]int
	wins   map[string]map[string]int
}

// NewWinRateTracker constructs an empty tracker.
func NewWinRateTracker() *WinRateTracker {
	return &WinRateTracker{
		totals: make(map[string]int),
		wins:   make(map[string]map[string]int),
	}
}

// RecordWin notes that candidateID won a tournament for the module type.
func (t *WinRateTracker) RecordWin(moduleType, candidateID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals[moduleType]++
	if t.wins[moduleType] == nil {
		t.wins[moduleType] = make(map[string]int)
	}
	t.wins[moduleType][candidateID]++
}

// WinRate returns candidateID's fraction of recorded wins for the module
// type, plus the sample count.
func (t *WinRateTracker) WinRate(moduleType, candidateID string) (float64, int) {
	if t == nil {
		return 0, 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := t.totals[moduleType]
	if total == 0 {
		return 0, 0
	}
	return float64(t.wins[moduleType][candidateID]) / float64(total), total
}

// Adjust nudges the base weights for a module type using recorded history:
// the further above 50% the refiner's win rate sits, the more beta grows,
// capped at maxBetaNudge. Alpha shrinks by the same amount so the blend
// stays normalized.
func (t *WinRateTracker) Adjust(moduleType string, base Weights, refinerID string) Weights {
	rate, samples := t.WinRate(moduleType, refinerID)
	if samples < winRateMinSamples || rate <= 0.5 {
		return base
	}
	nudge := (rate - 0.5) * 2 * maxBetaNudge
	if nudge > maxBetaNudge {
		nudge = maxBetaNudge
	}
	adjusted := Weights{Alpha: base.Alpha - nudge, Beta: base.Beta + nudge}
	if adjusted.Alpha < 0 {
		adjusted.Alpha = 0
		adjusted.Beta = base.Alpha + base.Beta
	}
	return adjusted
}
