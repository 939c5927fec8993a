package variant

import "fmt"

// Mode is the closed set of supported execution modes. Each mode carries its
// variant set and defaults as data, resolved at configuration-load time.
type Mode int

const (
	// ModeSingleContinuous runs only the primary variant; every step's
	// winner is primary by construction.
	ModeSingleContinuous Mode = iota
	// ModeDualRLContinuous runs both variants and selects winners with the
	// deterministic fallback tie-break, without a full tournament.
	ModeDualRLContinuous
	// ModeDualRLTournament runs both variants and ranks their results with
	// the weighted tournament evaluator.
	ModeDualRLTournament
)

// ModeDefinition is the static data a mode declares.
type ModeDefinition struct {
	Name           string
	Variants       []Variant
	DefaultVariant Variant
	Tournament     bool
}

var modeDefinitions = map[Mode]ModeDefinition{
	ModeSingleContinuous: {
		Name:           "single-continuous",
		Variants:       []Variant{VariantPrimary},
		DefaultVariant: VariantPrimary,
	},
	ModeDualRLContinuous: {
		Name:           "dual-rl-continuous",
		Variants:       []Variant{VariantPrimary, VariantRefiner},
		DefaultVariant: VariantPrimary,
	},
	ModeDualRLTournament: {
		Name:           "dual-rl-tournament",
		Variants:       []Variant{VariantPrimary, VariantRefiner},
		DefaultVariant: VariantPrimary,
		Tournament:     true,
	},
}

// Definition returns the mode's declared variant set and defaults.
func (m Mode) Definition() ModeDefinition {
	if def, ok := modeDefinitions[m]; ok {
		return def
	}
	return modeDefinitions[ModeSingleContinuous]
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	return m.Definition().Name
}

// ParseMode resolves a configuration name into a Mode. Unknown names are an
// error at load time, never at execution time.
func ParseMode(name string) (Mode, error) {
	for mode, def := range modeDefinitions {
		if def.Name == name {
			return mode, nil
		}
	}
	return ModeSingleContinuous, fmt.Errorf("unknown execution mode: %q", name)
}
