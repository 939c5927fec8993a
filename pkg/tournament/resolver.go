package tournament

import (
	"errors"

	"github.com/boshang1988/arena/pkg/variant"
)

// ErrNoResults is returned when no variant produced a step result.
var ErrNoResults = errors.New("no variant produced a result")

// Decision names the step's single winner.
type Decision struct {
	Winner  variant.StepResult
	Variant variant.Variant
}

// FallbackPicker is a deterministic, mode-aware tie-break used when no
// tournament outcome is available. Either result pointer may be nil when
// that variant did not run.
type FallbackPicker func(def variant.ModeDefinition, primary, refiner *variant.StepResult) variant.Variant

// DefaultFallbackPicker prefers the higher raw score; equal scores prefer
// the variant with higher human accuracy; fully equal falls back to the
// mode's default-variant bias. A pure function of its declared inputs.
func DefaultFallbackPicker(def variant.ModeDefinition, primary, refiner *variant.StepResult) variant.Variant {
	switch {
	case refiner == nil:
		return variant.VariantPrimary
	case primary == nil:
		return variant.VariantRefiner
	}
	if primary.Score != refiner.Score {
		if refiner.Score > primary.Score {
			return variant.VariantRefiner
		}
		return variant.VariantPrimary
	}
	pAcc, rAcc := accuracyOrZero(primary), accuracyOrZero(refiner)
	if pAcc != rAcc {
		if rAcc > pAcc {
			return variant.VariantRefiner
		}
		return variant.VariantPrimary
	}
	if def.DefaultVariant != "" {
		return def.DefaultVariant
	}
	return variant.VariantPrimary
}

// ResolveWinner combines a tournament outcome (if computed) with the fallback
// tie-break to select exactly one winning variant for the step. The chosen
// candidate's human accuracy is written back onto its step result.
func ResolveWinner(def variant.ModeDefinition, results *variant.ResultSet, outcome *Outcome, fallback FallbackPicker) (Decision, error) {
	if results == nil || results.Len() == 0 {
		return Decision{}, ErrNoResults
	}
	if fallback == nil {
		fallback = DefaultFallbackPicker
	}

	ran := results.Variants()
	if len(ran) == 1 {
		// The sole participant wins unconditionally regardless of score.
		winner := ran[0]
		annotateFromOutcome(results, winner, outcome)
		result, _ := results.Get(winner)
		return Decision{Winner: result, Variant: winner}, nil
	}

	if outcome != nil && len(outcome.Ranked) > 0 {
		for _, ranked := range outcome.Ranked {
			v := variant.Variant(ranked.CandidateID)
			if _, ok := results.Get(v); !ok {
				continue
			}
			results.Annotate(v, ranked.HumanAccuracy)
			result, _ := results.Get(v)
			return Decision{Winner: result, Variant: v}, nil
		}
	}

	primary := resultPtr(results, variant.VariantPrimary)
	refiner := resultPtr(results, variant.VariantRefiner)
	winner := fallback(def, primary, refiner)
	result, ok := results.Get(winner)
	if !ok {
		// Picker chose a variant that never ran; fall back to any runner.
		winner = ran[0]
		result, _ = results.Get(winner)
	}
	return Decision{Winner: result, Variant: winner}, nil
}

func annotateFromOutcome(results *variant.ResultSet, v variant.Variant, outcome *Outcome) {
	if outcome == nil {
		return
	}
	for _, ranked := range outcome.Ranked {
		if variant.Variant(ranked.CandidateID) == v {
			results.Annotate(v, ranked.HumanAccuracy)
			return
		}
	}
}

func resultPtr(results *variant.ResultSet, v variant.Variant) *variant.StepResult {
	if result, ok := results.Get(v); ok {
		return &result
	}
	return nil
}

func accuracyOrZero(r *variant.StepResult) float64 {
	if r == nil || r.HumanAccuracy == nil {
		return 0
	}
	return *r.HumanAccuracy
}
