package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// checkGitCLI verifies that git is available in PATH. Every core
// operation (tree hashing, notes, history) shells out to it.
func checkGitCLI() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH; preflight requires the git CLI")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Validation pipeline runner with git-native result caching",
	Long: `Preflight runs a configured validation pipeline (ordered phases of
parallel or sequential steps) against the current working tree.

Results are keyed by a deterministic hash of the working tree content
and recorded as git notes, so an unchanged tree never has to be
validated twice and history travels with the repository.

Configuration lives in .preflight.yaml at the repository root; run
'preflight init' to generate a starter file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
