package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boshang1988/arena/pkg/variant"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mode != DefaultMode {
		t.Errorf("Mode = %s, want %s", cfg.Mode, DefaultMode)
	}
	if cfg.ResolvedMode() != variant.ModeDualRLTournament {
		t.Errorf("ResolvedMode = %s, want dual-rl-tournament", cfg.ResolvedMode())
	}
	if cfg.ContinueOnFailure {
		t.Error("default must halt on first failure")
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
	if _, ok := cfg.Rewards["general"]; !ok {
		t.Error("default rewards must cover the general module type")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mode: dual-rl-continuous
parallel: false
max_concurrent: 2
continue_on_failure: true
rewards:
  general:
    alpha: 0.6
    beta: 0.4
modules:
  - id: core
    name: Core library
    type: test-heavy
    steps:
      - name: build
        command: go build ./...
      - name: test
        command: go test ./...
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResolvedMode() != variant.ModeDualRLContinuous {
		t.Errorf("ResolvedMode = %s, want dual-rl-continuous", cfg.ResolvedMode())
	}
	if cfg.Parallel {
		t.Error("parallel should be overridden to false")
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", cfg.MaxConcurrent)
	}
	if !cfg.ContinueOnFailure {
		t.Error("continue_on_failure should be true")
	}
	if got := cfg.Rewards["general"].Alpha; got != 0.6 {
		t.Errorf("rewards.general.alpha = %v, want 0.6", got)
	}
	// Defaults not mentioned in the file survive the merge.
	if cfg.StepTimeout != DefaultStepTimeout {
		t.Errorf("StepTimeout = %v, want default %v", cfg.StepTimeout, DefaultStepTimeout)
	}
	if len(cfg.Modules) != 1 || len(cfg.Modules[0].Steps) != 2 {
		t.Fatalf("Modules = %+v, want one module with two steps", cfg.Modules)
	}
	if cfg.Modules[0].Type != "test-heavy" {
		t.Errorf("module type = %s, want test-heavy", cfg.Modules[0].Type)
	}
}

func TestLoad_UnknownModeFailsAtLoadTime(t *testing.T) {
	path := writeConfig(t, "mode: turbo\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for an unknown mode name")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestValidate_ModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		modules []variant.Module
	}{
		{"missing id", []variant.Module{{Name: "x", Steps: []variant.Step{{Name: "s"}}}}},
		{"duplicate id", []variant.Module{
			{ID: "a", Steps: []variant.Step{{Name: "s"}}},
			{ID: "a", Steps: []variant.Step{{Name: "s"}}},
		}},
		{"no steps", []variant.Module{{ID: "a"}}},
		{"unnamed step", []variant.Module{{ID: "a", Steps: []variant.Step{{Command: "true"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Modules = tt.modules
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_NormalizesZeroValues(t *testing.T) {
	cfg := &Config{Mode: "single-continuous"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.ResolvedMode() != variant.ModeSingleContinuous {
		t.Errorf("ResolvedMode = %s, want single-continuous", cfg.ResolvedMode())
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want default", cfg.MaxConcurrent)
	}
	if cfg.StepTimeout != DefaultStepTimeout || cfg.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("timeouts = %v/%v, want defaults", cfg.StepTimeout, cfg.CommandTimeout)
	}
	if cfg.StepTimeout < time.Minute {
		t.Error("step timeout default should be generous")
	}
}
