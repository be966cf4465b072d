package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the starter pipeline written by `preflight init`.
func DefaultConfig() *Config {
	return &Config{
		FailFast:  true,
		OutputDir: DefaultOutputDir,
		NotesRef:  DefaultNotesRef,
		Phases: []PhaseConfig{
			{
				Name:     "static",
				Parallel: true,
				Steps: []StepConfig{
					{Name: "typecheck", Command: "go vet ./..."},
					{Name: "lint", Command: "golangci-lint run"},
				},
			},
			{
				Name: "test",
				Steps: []StepConfig{
					{Name: "unit", Command: "go test ./..."},
				},
			},
		},
	}
}

// WriteDefault writes the starter config file into repoPath. Refuses to
// overwrite an existing config.
func WriteDefault(repoPath string) (string, error) {
	path := filepath.Join(repoPath, ConfigName+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config already exists at %s", path)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("render default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
