package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cormorantdev/preflight/internal/forge"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show validation state for the current tree",
	Long: `Status computes the working-tree hash and reports whether this exact
tree state has a recorded validation result, alongside branch and HEAD
information and, when a fetcher is configured, the hosting provider's
CI status for HEAD.`,
	RunE: runStatus,
}

// statusFetcher is the CI status source. Swapped in by builds that ship
// a concrete client; the default reports not-configured.
var statusFetcher forge.StatusFetcher = forge.Unconfigured{}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkGitCLI(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rc, err := newRunContext(ctx)
	if err != nil {
		return err
	}

	branch, _ := rc.inspector.CurrentBranch()
	head, _ := rc.inspector.HeadCommit()
	dirty, _ := rc.inspector.HasChanges()

	fmt.Printf("branch:    %s\n", branch)
	fmt.Printf("head:      %s\n", shortHash(head))
	fmt.Printf("tree hash: %s\n", shortHash(rc.treeHash.Hash))
	if dirty {
		color.Yellow("working tree has uncommitted changes")
	}

	cached, err := rc.lookup.FindCachedRun(ctx, rc.treeHash)
	if err != nil {
		return fmt.Errorf("cache lookup: %w", err)
	}
	if cached == nil {
		fmt.Println("validation: no recorded result for this tree")
	} else if cached.Passed {
		color.Green("validation: ✓ passed (recorded %s)", cached.Timestamp)
	} else {
		color.Red("validation: ✗ failed at %q (recorded %s)", cached.Result.FailedStep, cached.Timestamp)
	}

	printCIStatus(ctx, head)
	return nil
}

func printCIStatus(ctx context.Context, head string) {
	if head == "" {
		return
	}
	status, err := statusFetcher.FetchStatus(ctx, head)
	if errors.Is(err, forge.ErrNotConfigured) {
		fmt.Println("ci status:  not configured")
		return
	}
	if err != nil {
		color.Yellow("ci status:  unavailable (%v)", err)
		return
	}

	switch status.State {
	case forge.StateSuccess:
		color.Green("ci status:  ✓ %s", status.State)
	case forge.StateFailure:
		color.Red("ci status:  ✗ %s", status.State)
	default:
		fmt.Printf("ci status:  %s\n", status.State)
	}
	for _, c := range status.Checks {
		fmt.Printf("  %-8s %s\n", c.State, c.Name)
	}
}
