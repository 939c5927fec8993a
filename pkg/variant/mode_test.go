package variant

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"single continuous", "single-continuous", ModeSingleContinuous, false},
		{"dual continuous", "dual-rl-continuous", ModeDualRLContinuous, false},
		{"dual tournament", "dual-rl-tournament", ModeDualRLTournament, false},
		{"unknown mode", "triple-threat", ModeSingleContinuous, true},
		{"empty", "", ModeSingleContinuous, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestModeDefinition(t *testing.T) {
	single := ModeSingleContinuous.Definition()
	if len(single.Variants) != 1 || single.Variants[0] != VariantPrimary {
		t.Errorf("single-continuous variants = %v, want [primary]", single.Variants)
	}
	if single.Tournament {
		t.Error("single-continuous should not declare a tournament")
	}

	tournament := ModeDualRLTournament.Definition()
	if len(tournament.Variants) != 2 {
		t.Errorf("dual-rl-tournament variants = %v, want 2", tournament.Variants)
	}
	if !tournament.Tournament {
		t.Error("dual-rl-tournament should declare a tournament")
	}
	if tournament.DefaultVariant != VariantPrimary {
		t.Errorf("default variant = %v, want primary", tournament.DefaultVariant)
	}
}

func TestModeString(t *testing.T) {
	if got := ModeDualRLContinuous.String(); got != "dual-rl-continuous" {
		t.Errorf("String() = %q, want dual-rl-continuous", got)
	}
}
