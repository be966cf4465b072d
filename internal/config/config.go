// Package config handles configuration loading for preflight.
// It reads .preflight.yaml from the repository root with environment
// variable overrides; the execution core never reads config files
// directly.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cormorantdev/preflight/pkg/models"
)

// ConfigName is the config file base name looked up in the repo root.
const ConfigName = ".preflight"

// Defaults applied when the config file omits a key.
const (
	DefaultOutputDir = ".preflight/logs"
	DefaultNotesRef  = "preflight/runs"
)

// StepConfig is one step entry in the config file.
type StepConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Command string `mapstructure:"command" yaml:"command"`
}

// PhaseConfig is one phase entry in the config file.
type PhaseConfig struct {
	Name     string       `mapstructure:"name" yaml:"name"`
	Parallel bool         `mapstructure:"parallel" yaml:"parallel"`
	Steps    []StepConfig `mapstructure:"steps" yaml:"steps"`
}

// Config holds all configuration for preflight.
type Config struct {
	// Phases is the ordered validation pipeline.
	Phases []PhaseConfig `mapstructure:"phases" yaml:"phases"`
	// FailFast aborts remaining work on the first failure.
	FailFast bool `mapstructure:"fail_fast" yaml:"fail_fast"`
	// OutputDir is where run artifacts are written, relative to the
	// repo root.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// NotesRef is the notes ref history is stored under (short form).
	NotesRef string `mapstructure:"notes_ref" yaml:"notes_ref"`
	// Env is a KEY=VALUE overlay applied to every step.
	Env []string `mapstructure:"env" yaml:"env,omitempty"`
}

// Load reads configuration from repoPath. Environment variables prefixed
// PREFLIGHT_ override file values (PREFLIGHT_FAIL_FAST, ...).
func Load(repoPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(repoPath)

	v.SetDefault("fail_fast", true)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("notes_ref", DefaultNotesRef)

	v.SetEnvPrefix("PREFLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config in %s: %w", repoPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements the runner depends on.
func (c *Config) Validate() error {
	if len(c.Phases) == 0 {
		return fmt.Errorf("config defines no phases")
	}
	for _, p := range c.Phases {
		if p.Name == "" {
			return fmt.Errorf("phase with empty name")
		}
		if len(p.Steps) == 0 {
			return fmt.Errorf("phase %q has no steps", p.Name)
		}
		seen := make(map[string]bool)
		for _, s := range p.Steps {
			if s.Name == "" {
				return fmt.Errorf("phase %q has a step with empty name", p.Name)
			}
			if s.Command == "" {
				return fmt.Errorf("step %q in phase %q has no command", s.Name, p.Name)
			}
			// Step names are display labels and file-name stems; they
			// must be unique within their phase.
			if seen[s.Name] {
				return fmt.Errorf("duplicate step name %q in phase %q", s.Name, p.Name)
			}
			seen[s.Name] = true
		}
	}
	return nil
}

// ValidationPhases converts the config entries into the runner's domain
// types.
func (c *Config) ValidationPhases() []models.ValidationPhase {
	phases := make([]models.ValidationPhase, 0, len(c.Phases))
	for _, p := range c.Phases {
		phase := models.ValidationPhase{Name: p.Name, Parallel: p.Parallel}
		for _, s := range p.Steps {
			phase.Steps = append(phase.Steps, models.ValidationStep{Name: s.Name, Command: s.Command})
		}
		phases = append(phases, phase)
	}
	return phases
}
