// Package runner is the validation execution core.
//
// # Overview
//
// A validation run drives an ordered list of phases; each phase runs its
// steps either sequentially (stop at first failure) or in parallel
// (fail-fast kills sibling process groups on first failure). Control
// flow:
//
//	Runner -> PhaseScheduler (per phase) -> StepExecutor (per step) -> procexec
//
// Step and phase failures are data, never errors: downstream consumers
// (history store, terminal UI, CI reporters) inspect partial results even
// on failure. Errors returned by Run are reserved for infrastructure
// faults such as an unusable tree hash provider.
//
// # Cancellation
//
// Live process handles are tracked in a Registry scoped to one run.
// Cancellation happens on exactly two paths: fail-fast in a parallel
// phase, and external termination (OS signal or context cancellation).
// Both kill entire process groups, not just direct children. There is no
// step-level timeout: a hung step blocks its phase indefinitely unless
// the surrounding environment kills the run. That sharp edge is
// deliberate; step commands own their own time budgets.
package runner
