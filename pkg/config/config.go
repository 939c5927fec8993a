// Package config is the YAML configuration surface for an upgrade run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boshang1988/arena/pkg/tournament"
	"github.com/boshang1988/arena/pkg/variant"
)

// Default configuration values exported for documentation and validation
const (
	DefaultMode           = "dual-rl-tournament"
	DefaultMaxConcurrent  = 4
	DefaultStepTimeout    = 10 * time.Minute
	DefaultCommandTimeout = 5 * time.Minute
)

// Config is the complete run configuration. Mode is kept as its string name
// here and resolved into a closed enum during Load; nothing downstream ever
// sees an unvalidated mode.
type Config struct {
	Mode              string                        `yaml:"mode"`
	Parallel          bool                          `yaml:"parallel"`
	ParallelModules   bool                          `yaml:"parallel_modules"`
	MaxConcurrent     int                           `yaml:"max_concurrent"`
	ContinueOnFailure bool                          `yaml:"continue_on_failure"`
	StepTimeout       time.Duration                 `yaml:"step_timeout"`
	CommandTimeout    time.Duration                 `yaml:"command_timeout"`
	WorkspaceRoot     string                        `yaml:"workspace_root"`
	ExcludeDirs       []string                      `yaml:"exclude_dirs"`
	Rewards           map[string]tournament.Weights `yaml:"rewards"`
	Metrics           tournament.MetricWeights      `yaml:"metrics"`
	Modules           []variant.Module              `yaml:"modules"`

	// resolved is populated by Load/Validate from Mode.
	resolved variant.Mode
}

// DefaultConfig returns the built-in configuration: tournament mode, parallel
// variants, sequential modules, halt on first failure.
func DefaultConfig() *Config {
	return &Config{
		Mode:              DefaultMode,
		Parallel:          true,
		MaxConcurrent:     DefaultMaxConcurrent,
		ContinueOnFailure: false,
		StepTimeout:       DefaultStepTimeout,
		CommandTimeout:    DefaultCommandTimeout,
		Rewards:           tournament.DefaultWeights(),
		resolved:          variant.ModeDualRLTournament,
	}
}

// Load reads a YAML config from path, merged over the defaults, and
// validates it. The returned config always carries a resolved mode.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and resolves Mode. It must be called on
// any config not produced by Load before the config is used.
func (c *Config) Validate() error {
	mode, err := variant.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.resolved = mode

	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}

	seen := make(map[string]struct{}, len(c.Modules))
	for i, mod := range c.Modules {
		if mod.ID == "" {
			return fmt.Errorf("module %d: missing id", i)
		}
		if _, dup := seen[mod.ID]; dup {
			return fmt.Errorf("duplicate module id %q", mod.ID)
		}
		seen[mod.ID] = struct{}{}
		if len(mod.Steps) == 0 {
			return fmt.Errorf("module %q: no steps", mod.ID)
		}
		for j, step := range mod.Steps {
			if step.Name == "" {
				return fmt.Errorf("module %q: step %d missing name", mod.ID, j)
			}
		}
	}
	return nil
}

// ResolvedMode returns the mode enum resolved during Load or Validate.
func (c *Config) ResolvedMode() variant.Mode {
	return c.resolved
}
