package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cormorantdev/preflight/internal/extract"
	"github.com/cormorantdev/preflight/internal/gittree"
	"github.com/cormorantdev/preflight/internal/procexec"
	"github.com/cormorantdev/preflight/pkg/models"
)

// Options configures a validation run.
type Options struct {
	// Phases are executed strictly in order.
	Phases []models.ValidationPhase
	// FailFast aborts on first failure (within sequential phases and
	// across parallel siblings).
	FailFast bool
	// Verbose mirrors raw step output to the terminal.
	Verbose bool
	// Debug persists output and runs extraction even for passing steps.
	Debug bool
	// WorkDir is the repository root commands run in.
	WorkDir string
	// Env is a KEY=VALUE overlay applied to every step.
	Env []string
	// OutputDir is the base directory for run artifacts; the runner
	// nests per-run output under the tree hash. Empty disables
	// persistence.
	OutputDir string
	// Callbacks observe run progress.
	Callbacks Callbacks
}

// Runner drives an ordered list of phases to a single ValidationResult.
type Runner struct {
	proc      procexec.Runner
	tree      gittree.Provider
	extractor extract.Extractor
	registry  *Registry
	opts      Options
}

// New creates a validation runner. A nil extractor gets the default
// regex extractor.
func New(proc procexec.Runner, tree gittree.Provider, extractor extract.Extractor, opts Options) *Runner {
	if extractor == nil {
		extractor = extract.NewRegexExtractor()
	}
	return &Runner{
		proc:      proc,
		tree:      tree,
		extractor: extractor,
		registry:  NewRegistry(),
		opts:      opts,
	}
}

// Registry exposes the live-process registry for signal wiring.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run executes all configured phases and assembles the terminal result.
// Phases run serially even when their steps run in parallel; the first
// failed phase ends the run and later phases are never attempted. The
// tree hash is captured once, here, so caching decisions reflect the
// tree state when validation began, not whatever it drifted to while
// steps ran. The returned error is reserved for infrastructure faults;
// validation failure is expressed in the result itself.
func (r *Runner) Run(ctx context.Context) (*models.ValidationResult, error) {
	start := time.Now()

	treeHash, err := r.tree.ComputeTreeHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute tree hash: %w", err)
	}

	outputDir := ""
	if r.opts.OutputDir != "" {
		outputDir = filepath.Join(r.opts.OutputDir, treeHash.Hash)
	}

	// Context cancellation terminates live processes, same as a signal.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			r.registry.TerminateAll()
		case <-watchDone:
		}
	}()

	steps := NewStepExecutor(r.proc, r.extractor, r.registry, StepOptions{
		WorkDir:   r.opts.WorkDir,
		Env:       r.opts.Env,
		Verbose:   r.opts.Verbose,
		Debug:     r.opts.Debug,
		OutputDir: outputDir,
	})
	dispatch := &callbackDispatcher{cb: r.opts.Callbacks}

	combinedLog := newRunLog(outputDir, r.opts.Verbose)
	result := &models.ValidationResult{
		Timestamp: start.UTC().Format(time.RFC3339),
		TreeHash:  treeHash.Hash,
	}

	for _, phase := range r.opts.Phases {
		dispatch.phaseStart(phase)
		scheduler := NewPhaseScheduler(steps, r.registry, dispatch, r.opts.FailFast)
		phaseResult, failedStep := scheduler.Run(phase)
		dispatch.phaseComplete(phase, phaseResult)

		combinedLog.writePhase(phase, phaseResult, failedStep)
		result.Phases = append(result.Phases, phaseResult)

		if !phaseResult.Passed {
			result.Passed = false
			result.FailedStep = failedStep
			result.Summary = fmt.Sprintf("phase %q failed at step %q", phase.Name, failedStep)
			result.OutputFiles = combinedLog.files()
			return result, nil
		}
	}

	result.Passed = true
	result.Summary = fmt.Sprintf("all %d phases passed (%d steps)", len(result.Phases), countSteps(result.Phases))
	result.OutputFiles = combinedLog.files()
	return result, nil
}

func countSteps(phases []models.PhaseResult) int {
	n := 0
	for _, p := range phases {
		n += len(p.Steps)
	}
	return n
}

// runLog accumulates the combined, human-readable run log file. Log
// files are diagnostic, not load-bearing: every write is best-effort.
type runLog struct {
	path    string
	verbose bool
	failed  bool
	b       strings.Builder
}

func newRunLog(outputDir string, verbose bool) *runLog {
	if outputDir == "" {
		return &runLog{}
	}
	return &runLog{path: filepath.Join(outputDir, "combined.log"), verbose: verbose}
}

// writePhase appends one phase's delimited step outputs and flushes the
// file.
func (l *runLog) writePhase(phase models.ValidationPhase, result models.PhaseResult, failedStep string) {
	if l.path == "" {
		return
	}
	fmt.Fprintf(&l.b, "===== phase: %s =====\n", phase.Name)
	for _, s := range result.Steps {
		marker := ""
		if s.Name == failedStep {
			marker = "  [FAILED]"
		}
		fmt.Fprintf(&l.b, "--- step: %s (exit %d, %.2fs)%s\n", s.Name, s.ExitCode, s.DurationSecs, marker)
		fmt.Fprintf(&l.b, "    $ %s\n", s.Command)
		if s.Extraction != nil {
			fmt.Fprintf(&l.b, "    %s\n", s.Extraction.Summary)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		l.warn(err)
		return
	}
	if err := os.WriteFile(l.path, []byte(l.b.String()), 0644); err != nil {
		l.warn(err)
	}
}

func (l *runLog) warn(err error) {
	if l.failed {
		return
	}
	l.failed = true
	if l.verbose {
		log.Printf("[runner] warning: write combined log %s: %v", l.path, err)
	}
}

// files returns the combined log reference, if it was written.
func (l *runLog) files() *models.OutputFiles {
	if l.path == "" || l.failed || l.b.Len() == 0 {
		return nil
	}
	return &models.OutputFiles{Combined: l.path}
}
