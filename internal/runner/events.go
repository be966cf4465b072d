package runner

import (
	"sync"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Callbacks let a caller (terminal UI, CI reporter) observe run progress
// without the core depending on any rendering logic. All callbacks are
// optional and fired synchronously at the relevant transition; during
// parallel phases they are serialized, so implementations need no
// internal locking.
type Callbacks struct {
	// OnPhaseStart fires before a phase's first step launches.
	OnPhaseStart func(phase models.ValidationPhase)
	// OnPhaseComplete fires after every step in the phase has closed.
	OnPhaseComplete func(phase models.ValidationPhase, result models.PhaseResult)
	// OnStepStart fires just before a step's process spawns.
	OnStepStart func(step models.ValidationStep)
	// OnStepComplete fires once a step's process has closed.
	OnStepComplete func(step models.ValidationStep, result models.StepResult)
}

// callbackDispatcher serializes callback invocation across concurrently
// completing steps.
type callbackDispatcher struct {
	mu sync.Mutex
	cb Callbacks
}

func (d *callbackDispatcher) phaseStart(p models.ValidationPhase) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb.OnPhaseStart != nil {
		d.cb.OnPhaseStart(p)
	}
}

func (d *callbackDispatcher) phaseComplete(p models.ValidationPhase, r models.PhaseResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb.OnPhaseComplete != nil {
		d.cb.OnPhaseComplete(p, r)
	}
}

func (d *callbackDispatcher) stepStart(s models.ValidationStep) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb.OnStepStart != nil {
		d.cb.OnStepStart(s)
	}
}

func (d *callbackDispatcher) stepComplete(s models.ValidationStep, r models.StepResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb.OnStepComplete != nil {
		d.cb.OnStepComplete(s, r)
	}
}
