package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/cormorantdev/preflight/internal/config"
	"github.com/cormorantdev/preflight/internal/git"
	"github.com/cormorantdev/preflight/internal/gittree"
	"github.com/cormorantdev/preflight/internal/history"
	"github.com/cormorantdev/preflight/internal/journal"
	"github.com/cormorantdev/preflight/internal/notes"
	"github.com/cormorantdev/preflight/internal/procexec"
	"github.com/cormorantdev/preflight/internal/runner"
	"github.com/cormorantdev/preflight/internal/tui"
	"github.com/cormorantdev/preflight/pkg/models"
)

// runContext bundles everything a pipeline invocation needs: resolved
// repo root, config, and the stores keyed off them.
type runContext struct {
	repoRoot  string
	cfg       *config.Config
	tree      gittree.Provider
	treeHash  models.TreeHash
	inspector git.Inspector
	hist      *history.Store
	lookup    *history.Lookup
}

// newRunContext resolves the repository root from the working directory
// and wires up config, tree hashing, and history access.
func newRunContext(ctx context.Context) (*runContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	inspector := git.NewRunner(cwd)
	repoRoot, err := inspector.RepoRoot()
	if err != nil {
		return nil, fmt.Errorf("not inside a git repository: %w", err)
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, err
	}

	tree := gittree.NewProvider(repoRoot)
	treeHash, err := tree.ComputeTreeHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute tree hash: %w", err)
	}

	hist := history.NewStore(notes.NewStore(repoRoot), cfg.NotesRef)
	return &runContext{
		repoRoot:  repoRoot,
		cfg:       cfg,
		tree:      tree,
		treeHash:  treeHash,
		inspector: git.NewRunner(repoRoot),
		hist:      hist,
		lookup:    history.NewLookup(hist),
	}, nil
}

type pipelineOptions struct {
	verbose    bool
	debug      bool
	tui        bool
	emitResult bool
}

// executePipeline runs the configured phases, records the outcome in
// git notes and the local journal, and prints the result.
func (rc *runContext) executePipeline(ctx context.Context, opts pipelineOptions) (*models.ValidationResult, error) {
	phases := rc.cfg.ValidationPhases()
	runOpts := runner.Options{
		Phases:    phases,
		FailFast:  rc.cfg.FailFast,
		Verbose:   opts.verbose,
		Debug:     opts.debug,
		WorkDir:   rc.repoRoot,
		Env:       rc.cfg.Env,
		OutputDir: rc.outputDir(),
	}

	start := time.Now()
	var result *models.ValidationResult
	var runErr error

	if opts.tui {
		p, bridge := tui.NewProgram(phases)
		runOpts.Callbacks = bridge.Callbacks()
		r := runner.New(procexec.NewExecutor(), rc.tree, nil, runOpts)
		stop := runner.NotifyShutdown(r.Registry(), func(sig os.Signal) { os.Exit(130) })

		type outcome struct {
			result *models.ValidationResult
			err    error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := r.Run(ctx)
			bridge.Done(res, err)
			done <- outcome{res, err}
		}()
		if _, err := p.Run(); err != nil {
			stop()
			return nil, fmt.Errorf("terminal UI: %w", err)
		}
		stop()
		// Quitting the UI mid-run aborts the pipeline; after a normal
		// finish the registry is already empty and this is a no-op.
		r.Registry().TerminateAll()
		o := <-done
		result, runErr = o.result, o.err
	} else {
		runOpts.Callbacks = consoleCallbacks()
		r := runner.New(procexec.NewExecutor(), rc.tree, nil, runOpts)
		stop := runner.NotifyShutdown(r.Registry(), func(sig os.Signal) { os.Exit(130) })
		result, runErr = r.Run(ctx)
		stop()
	}
	if runErr != nil {
		return nil, runErr
	}

	rc.record(ctx, result, time.Since(start))
	printResult(result)
	if opts.emitResult {
		if err := emitResult(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// record appends the run to notes history and the local journal. History
// write failures are surfaced as warnings, never as run failures: the
// validation verdict is already known.
func (rc *runContext) record(ctx context.Context, result *models.ValidationResult, elapsed time.Duration) {
	run := models.ValidationRun{
		ID:              uuid.New().String(),
		Timestamp:       result.Timestamp,
		DurationMS:      elapsed.Milliseconds(),
		Passed:          result.Passed,
		SubmoduleHashes: rc.treeHash.SubmoduleHashes,
		Result:          *result,
	}
	if branch, err := rc.inspector.CurrentBranch(); err == nil {
		run.Branch = branch
	}
	if sha, err := rc.inspector.HeadCommit(); err == nil {
		run.HeadCommit = sha
	}
	if dirty, err := rc.inspector.HasChanges(); err == nil {
		run.UncommittedChanges = dirty
	}

	if err := rc.hist.AppendRun(ctx, rc.treeHash.Hash, run); err != nil {
		log.Printf("warning: record history note: %v", err)
	}

	db, err := journal.OpenProject(rc.repoRoot)
	if err != nil {
		log.Printf("warning: open run journal: %v", err)
		return
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Printf("warning: migrate run journal: %v", err)
		return
	}
	if err := db.RecordRun(run, result, rc.treeHash.Hash); err != nil {
		log.Printf("warning: journal run: %v", err)
	}
}

func (rc *runContext) outputDir() string {
	if rc.cfg.OutputDir == "" {
		return ""
	}
	if filepath.IsAbs(rc.cfg.OutputDir) {
		return rc.cfg.OutputDir
	}
	return filepath.Join(rc.repoRoot, rc.cfg.OutputDir)
}

// consoleCallbacks prints plain colored progress, one line per event.
func consoleCallbacks() runner.Callbacks {
	bold := color.New(color.Bold)
	return runner.Callbacks{
		OnPhaseStart: func(phase models.ValidationPhase) {
			mode := ""
			if phase.Parallel {
				mode = " (parallel)"
			}
			bold.Printf("=== %s%s\n", phase.Name, mode)
		},
		OnStepComplete: func(step models.ValidationStep, result models.StepResult) {
			switch {
			case result.IsCachedResult:
				color.Cyan("  ◌ %s (cached)", result.Name)
			case result.Passed:
				color.Green("  ✓ %s (%.1fs)", result.Name, result.DurationSecs)
			default:
				color.Red("  ✗ %s (exit %d, %.1fs)", result.Name, result.ExitCode, result.DurationSecs)
				if result.Extraction != nil {
					fmt.Printf("    %s\n", result.Extraction.Summary)
				}
			}
		},
	}
}

func printResult(result *models.ValidationResult) {
	fmt.Println()
	if result.Passed {
		color.Green("✓ %s", result.Summary)
	} else {
		color.Red("✗ %s", result.Summary)
		if step := failedStepResult(result); step != nil && step.Extraction != nil {
			fmt.Printf("  %s\n", step.Extraction.Summary)
			for _, e := range step.Extraction.Errors {
				if e.File != "" {
					fmt.Printf("  %s:%d: %s\n", e.File, e.Line, e.Message)
				} else {
					fmt.Printf("  %s\n", e.Message)
				}
			}
		}
		if result.OutputFiles != nil && result.OutputFiles.Combined != "" {
			fmt.Printf("  full output: %s\n", result.OutputFiles.Combined)
		}
	}
}

// failedStepResult returns the step result named by FailedStep, or the
// first non-passing step.
func failedStepResult(result *models.ValidationResult) *models.StepResult {
	name := result.FirstFailedStep()
	if name == "" {
		return nil
	}
	for i := range result.Phases {
		for j := range result.Phases[i].Steps {
			s := &result.Phases[i].Steps[j]
			if s.Name == name {
				return s
			}
		}
	}
	return nil
}
