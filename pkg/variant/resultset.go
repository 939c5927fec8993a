package variant

import "sync"

// ResultSet holds at most one StepResult per variant. A missing entry means
// "this variant did not run for this step", which callers must treat
// distinctly from "ran and failed". Safe for concurrent writers during
// parallel dispatch.
type ResultSet struct {
	mu      sync.RWMutex
	results map[Variant]StepResult
}

// NewResultSet constructs an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{results: make(map[Variant]StepResult)}
}

// Set records the result for a variant, replacing any previous entry.
func (rs *ResultSet) Set(v Variant, result StepResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results[v] = result
}

// Get returns the result for a variant and whether the variant ran.
func (rs *ResultSet) Get(v Variant) (StepResult, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	result, ok := rs.results[v]
	return result, ok
}

// Annotate writes a tournament-derived accuracy onto a recorded result.
// No-op if the variant did not run.
func (rs *ResultSet) Annotate(v Variant, humanAccuracy float64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if result, ok := rs.results[v]; ok {
		acc := humanAccuracy
		result.HumanAccuracy = &acc
		rs.results[v] = result
	}
}

// Variants returns the variants that ran, in declaration order.
func (rs *ResultSet) Variants() []Variant {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	var ran []Variant
	for _, v := range AllVariants() {
		if _, ok := rs.results[v]; ok {
			ran = append(ran, v)
		}
	}
	return ran
}

// Len returns the number of variants that ran.
func (rs *ResultSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.results)
}
