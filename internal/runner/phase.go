package runner

import (
	"sync"
	"time"

	"github.com/cormorantdev/preflight/pkg/models"
)

// PhaseScheduler runs one phase's steps under either the sequential or
// the parallel strategy. The two strategies share the identical step
// execution primitive and differ only in ordering and cancellation
// policy.
type PhaseScheduler struct {
	steps    *StepExecutor
	registry *Registry
	dispatch *callbackDispatcher
	// failFast aborts remaining/sibling work on the first failure.
	failFast bool
}

// NewPhaseScheduler creates a scheduler over the shared step executor and
// process registry.
func NewPhaseScheduler(steps *StepExecutor, registry *Registry, dispatch *callbackDispatcher, failFast bool) *PhaseScheduler {
	return &PhaseScheduler{steps: steps, registry: registry, dispatch: dispatch, failFast: failFast}
}

// Run executes the phase and returns its aggregated result plus the name
// of the step that caused the failure ("" when the phase passed).
func (s *PhaseScheduler) Run(phase models.ValidationPhase) (models.PhaseResult, string) {
	if phase.Parallel {
		return s.runParallel(phase)
	}
	return s.runSequential(phase)
}

// runSequential executes steps strictly in order; step N+1 never starts
// before step N's process has fully closed. With fail-fast the first
// failure ends the phase and later steps are never attempted; without it
// every step runs and the first failure is cited for convenience only.
func (s *PhaseScheduler) runSequential(phase models.ValidationPhase) (models.PhaseResult, string) {
	start := time.Now()
	result := models.PhaseResult{Name: phase.Name, Passed: true}
	failedStep := ""

	for _, step := range phase.Steps {
		s.dispatch.stepStart(step)
		stepResult := s.steps.Execute(step)
		s.dispatch.stepComplete(step, stepResult)
		result.Steps = append(result.Steps, stepResult)

		if !stepResult.Passed {
			result.Passed = false
			if failedStep == "" {
				failedStep = step.Name
			}
			if s.failFast {
				break
			}
		}
	}

	result.DurationSecs = time.Since(start).Seconds()
	return result, failedStep
}

// runParallel launches every step at once: step count equals concurrent
// process count, and there is deliberately no worker-pool cap, so a
// phase with very many steps can exhaust OS process and fd limits. With
// fail-fast, the first failing step terminates every sibling's process
// group; killed siblings still produce a StepResult reflecting their exit
// state, and the phase does not complete until every step's process has
// closed. When several steps fail in the same instant, whichever reaches
// the trigger first is recorded, an accepted race outcome since any of
// the simultaneous failures is legitimately "first".
func (s *PhaseScheduler) runParallel(phase models.ValidationPhase) (models.PhaseResult, string) {
	start := time.Now()
	results := make([]models.StepResult, len(phase.Steps))

	var wg sync.WaitGroup
	var failOnce sync.Once
	var triggerMu sync.Mutex
	trigger := ""

	for i, step := range phase.Steps {
		wg.Add(1)
		go func(i int, step models.ValidationStep) {
			defer wg.Done()
			s.dispatch.stepStart(step)
			stepResult := s.steps.Execute(step)
			results[i] = stepResult

			if !stepResult.Passed && s.failFast {
				failOnce.Do(func() {
					triggerMu.Lock()
					trigger = step.Name
					triggerMu.Unlock()
					s.registry.TerminateAll()
				})
			}
			s.dispatch.stepComplete(step, stepResult)
		}(i, step)
	}
	wg.Wait()

	result := models.PhaseResult{
		Name:         phase.Name,
		Passed:       true,
		DurationSecs: time.Since(start).Seconds(),
		Steps:        results,
	}
	failedStep := ""
	for _, r := range results {
		if !r.Passed {
			result.Passed = false
			if failedStep == "" {
				failedStep = r.Name
			}
		}
	}
	// Attribute the failure to the fail-fast trigger when one fired.
	triggerMu.Lock()
	if trigger != "" {
		failedStep = trigger
	}
	triggerMu.Unlock()

	return result, failedStep
}
