// Package models defines the shared domain types for preflight.
package models

import "time"

// ValidationStep is a single named shell command within a phase.
// Loaded from configuration; immutable once loaded.
type ValidationStep struct {
	// Name is the display label, unique within its phase.
	Name string `json:"name"`
	// Command is the shell command to execute.
	Command string `json:"command"`
}

// ValidationPhase groups an ordered sequence of steps.
type ValidationPhase struct {
	// Name is the phase display label.
	Name string `json:"name"`
	// Parallel selects the parallel scheduler when true.
	Parallel bool `json:"parallel"`
	// Steps are executed in order (sequential) or all at once (parallel).
	Steps []ValidationStep `json:"steps"`
}

// OutputStream identifies which stream an output line arrived on.
type OutputStream string

const (
	// StreamStdout marks lines read from the child's stdout.
	StreamStdout OutputStream = "stdout"
	// StreamStderr marks lines read from the child's stderr.
	StreamStderr OutputStream = "stderr"
)

// OutputLine is one captured line of step output with its arrival metadata.
// Lines from both streams are kept in a single slice in arrival order so
// that replay preserves temporal interleaving.
type OutputLine struct {
	// Time is when the line was read from the child process.
	Time time.Time `json:"time"`
	// Stream is the stream the line arrived on.
	Stream OutputStream `json:"stream"`
	// Text is the line content with ANSI escapes stripped.
	Text string `json:"text"`
}

// OutputFiles holds paths to persisted step output, when persistence
// was triggered (failure or debug mode).
type OutputFiles struct {
	// Stdout is the path to the raw stdout capture.
	Stdout string `json:"stdout,omitempty"`
	// Stderr is the path to the raw stderr capture.
	Stderr string `json:"stderr,omitempty"`
	// Combined is the path to the interleaved line log.
	Combined string `json:"combined,omitempty"`
}

// StepResult is the immutable outcome of one step execution.
type StepResult struct {
	// Name is the step name.
	Name string `json:"name"`
	// Command is the command that was executed.
	Command string `json:"command"`
	// Passed is true when the command exited zero.
	Passed bool `json:"passed"`
	// ExitCode is the normalized exit code. Signal death is normalized to
	// a synthetic failure code, never reported as success.
	ExitCode int `json:"exit_code"`
	// DurationSecs is the wall-clock execution time in seconds.
	DurationSecs float64 `json:"duration_secs"`
	// Extraction holds structured error records, populated only for
	// failing steps (or in debug mode).
	Extraction *ErrorExtractorResult `json:"extraction,omitempty"`
	// IsCachedResult is true when this result was served from history
	// rather than a fresh execution.
	IsCachedResult bool `json:"is_cached_result,omitempty"`
	// OutputFiles references persisted output, if any.
	OutputFiles *OutputFiles `json:"output_files,omitempty"`
}

// PhaseResult aggregates the step results of one phase.
// When fail-fast short-circuits a sequential phase, only the steps that
// actually ran are included.
type PhaseResult struct {
	// Name is the phase name.
	Name string `json:"name"`
	// Passed is the logical AND of all step outcomes.
	Passed bool `json:"passed"`
	// DurationSecs is the wall-clock phase time in seconds.
	DurationSecs float64 `json:"duration_secs"`
	// Steps holds the results of the steps that ran, in order.
	Steps []StepResult `json:"steps"`
}

// ValidationResult is the terminal artifact of one full validation run.
// Never mutated after construction.
type ValidationResult struct {
	// Passed is true when every phase passed.
	Passed bool `json:"passed"`
	// Timestamp is the run start time in RFC 3339 format.
	Timestamp string `json:"timestamp"`
	// TreeHash is the working-tree hash captured at run start.
	TreeHash string `json:"tree_hash"`
	// Summary is a one-line human-readable outcome.
	Summary string `json:"summary"`
	// FailedStep names the first failing step, if any.
	FailedStep string `json:"failed_step,omitempty"`
	// Phases holds per-phase results; phases after the first failure are
	// never attempted and never appear here.
	Phases []PhaseResult `json:"phases"`
	// OutputFiles references the combined run log, if written.
	OutputFiles *OutputFiles `json:"output_files,omitempty"`
}

// FirstFailedStep returns the name of the first failing step across all
// phases, or "" when the run passed.
func (r *ValidationResult) FirstFailedStep() string {
	if r.FailedStep != "" {
		return r.FailedStep
	}
	for _, p := range r.Phases {
		for _, s := range p.Steps {
			if !s.Passed {
				return s.Name
			}
		}
	}
	return ""
}
