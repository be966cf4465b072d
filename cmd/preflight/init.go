package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cormorantdev/preflight/internal/config"
	"github.com/cormorantdev/preflight/internal/git"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .preflight.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkGitCLI(); err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		repoRoot, err := git.NewRunner(cwd).RepoRoot()
		if err != nil {
			return fmt.Errorf("not inside a git repository: %w", err)
		}

		path, err := config.WriteDefault(repoRoot)
		if err != nil {
			return err
		}
		color.Green("wrote %s", path)
		fmt.Println("edit the phases to match your project, then run 'preflight run'")
		return nil
	},
}
