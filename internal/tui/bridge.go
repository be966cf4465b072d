package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cormorantdev/preflight/internal/runner"
	"github.com/cormorantdev/preflight/pkg/models"
)

// sender is the part of tea.Program the bridge needs.
type sender interface {
	Send(tea.Msg)
}

// Bridge converts runner callbacks into tea messages. Runner callbacks
// are serialized, so tracking the current phase needs no locking; phases
// themselves run one at a time.
type Bridge struct {
	program sender
	phase   string
}

// NewBridge creates a bridge feeding the given program.
func NewBridge(p sender) *Bridge {
	return &Bridge{program: p}
}

// Callbacks returns runner callbacks that forward progress to the TUI.
func (b *Bridge) Callbacks() runner.Callbacks {
	return runner.Callbacks{
		OnPhaseStart: func(phase models.ValidationPhase) {
			b.phase = phase.Name
			b.program.Send(PhaseStartMsg{Phase: phase})
		},
		OnPhaseComplete: func(phase models.ValidationPhase, result models.PhaseResult) {
			b.program.Send(PhaseCompleteMsg{Result: result})
		},
		OnStepStart: func(step models.ValidationStep) {
			b.program.Send(StepStartMsg{Phase: b.phase, Step: step})
		},
		OnStepComplete: func(step models.ValidationStep, result models.StepResult) {
			b.program.Send(StepCompleteMsg{Phase: b.phase, Result: result})
		},
	}
}

// Done signals run completion to the TUI.
func (b *Bridge) Done(result *models.ValidationResult, err error) {
	b.program.Send(RunDoneMsg{Result: result, Err: err})
}

// NewProgram creates a bubbletea program for the pipeline's progress
// view. Messages are delivered via the returned bridge.
func NewProgram(phases []models.ValidationPhase) (*tea.Program, *Bridge) {
	app := New(phases)
	p := tea.NewProgram(app)
	return p, NewBridge(p)
}
