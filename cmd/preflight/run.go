package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cormorantdev/preflight/internal/runner"
	"github.com/cormorantdev/preflight/pkg/models"
)

var (
	runVerbose    bool
	runDebug      bool
	runForce      bool
	runTUI        bool
	runEmitResult bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the validation pipeline against the working tree",
	Long: `Run executes every configured phase in order. A phase marked parallel
launches all of its steps at once; otherwise steps run one at a time.
With fail_fast (the default) the first failing step terminates all
sibling processes and ends the run.

Before running, the working tree hash is checked against recorded
history: if this exact tree state (including submodule pointers) was
already validated, the recorded result is reused and no step runs.
Use --force to bypass the cache.`,
	RunE: runValidation,
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Mirror raw step output to the terminal")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Persist output and run extraction even for passing steps")
	runCmd.Flags().BoolVarP(&runForce, "force", "f", false, "Run even if a cached result exists for this tree")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Render progress in a full-screen terminal UI")
	runCmd.Flags().BoolVar(&runEmitResult, "emit-result", false, "Print the result as a marker-delimited JSON block for an enclosing run")
}

func runValidation(cmd *cobra.Command, args []string) error {
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

	// Cache check first: an unchanged tree never runs twice.
	if !runForce {
		cached, err := rc.lookup.FindCachedRun(ctx, rc.treeHash)
		if err != nil {
			return fmt.Errorf("cache lookup: %w", err)
		}
		if cached != nil {
			result := cached.Result
			markCached(&result)
			printCachedResult(cached)
			if runEmitResult {
				if err := emitResult(&result); err != nil {
					return err
				}
			}
			if !result.Passed {
				os.Exit(1)
			}
			return nil
		}
	}

	result, err := rc.executePipeline(ctx, pipelineOptions{
		verbose:    runVerbose,
		debug:      runDebug,
		tui:        runTUI,
		emitResult: runEmitResult,
	})
	if err != nil {
		return err
	}
	if !result.Passed {
		os.Exit(1)
	}
	return nil
}

// markCached flags every step so downstream consumers (nested runs, the
// TUI) can tell replayed results from fresh ones.
func markCached(result *models.ValidationResult) {
	for i := range result.Phases {
		for j := range result.Phases[i].Steps {
			result.Phases[i].Steps[j].IsCachedResult = true
		}
	}
}

func printCachedResult(run *models.ValidationRun) {
	header := color.New(color.FgCyan)
	header.Printf("cached result for tree %s (recorded %s)\n", shortHash(run.Result.TreeHash), run.Timestamp)
	if run.Result.Passed {
		color.Green("✓ %s", run.Result.Summary)
	} else {
		color.Red("✗ %s", run.Result.Summary)
	}
}

func emitResult(result *models.ValidationResult) error {
	block, err := runner.EncodeEmbeddedResult(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(block)
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
