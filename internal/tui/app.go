// Package tui provides the terminal progress view for validation runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cormorantdev/preflight/pkg/models"
)

// PhaseStartMsg is sent when a phase begins.
type PhaseStartMsg struct {
	Phase models.ValidationPhase
}

// PhaseCompleteMsg is sent when a phase finishes.
type PhaseCompleteMsg struct {
	Result models.PhaseResult
}

// StepStartMsg is sent when a step begins.
type StepStartMsg struct {
	Phase string
	Step  models.ValidationStep
}

// StepCompleteMsg is sent when a step finishes.
type StepCompleteMsg struct {
	Phase  string
	Result models.StepResult
}

// RunDoneMsg signals that the whole pipeline has finished.
type RunDoneMsg struct {
	Result *models.ValidationResult
	Err    error
}

type stepState int

const (
	stepPending stepState = iota
	stepRunning
	stepPassed
	stepFailed
	stepCached
)

type stepView struct {
	name     string
	state    stepState
	duration float64
}

type phaseView struct {
	name     string
	parallel bool
	running  bool
	done     bool
	passed   bool
	steps    []stepView
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cachedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// App is the bubbletea model rendering pipeline progress.
type App struct {
	spinner spinner.Model
	phases  []phaseView
	started time.Time
	done    bool
	result  *models.ValidationResult
	err     error
}

// New creates the progress model for the configured pipeline.
func New(phases []models.ValidationPhase) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	views := make([]phaseView, 0, len(phases))
	for _, p := range phases {
		pv := phaseView{name: p.Name, parallel: p.Parallel}
		for _, st := range p.Steps {
			pv.steps = append(pv.steps, stepView{name: st.Name})
		}
		views = append(views, pv)
	}
	return &App{spinner: s, phases: views, started: time.Now()}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PhaseStartMsg:
		if pv := a.findPhase(msg.Phase.Name); pv != nil {
			pv.running = true
		}

	case PhaseCompleteMsg:
		if pv := a.findPhase(msg.Result.Name); pv != nil {
			pv.running = false
			pv.done = true
			pv.passed = msg.Result.Passed
		}

	case StepStartMsg:
		if sv := a.findStep(msg.Phase, msg.Step.Name); sv != nil {
			sv.state = stepRunning
		}

	case StepCompleteMsg:
		if sv := a.findStep(msg.Phase, msg.Result.Name); sv != nil {
			sv.duration = msg.Result.DurationSecs
			switch {
			case msg.Result.IsCachedResult:
				sv.state = stepCached
			case msg.Result.Passed:
				sv.state = stepPassed
			default:
				sv.state = stepFailed
			}
		}

	case RunDoneMsg:
		a.done = true
		a.result = msg.Result
		a.err = msg.Err
		return a, tea.Quit
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("preflight") + "\n\n")

	for _, p := range a.phases {
		b.WriteString(a.phaseHeader(p) + "\n")
		for _, s := range p.steps {
			b.WriteString("  " + a.stepLine(s) + "\n")
		}
	}

	b.WriteString("\n" + a.footer() + "\n")
	return b.String()
}

func (a *App) phaseHeader(p phaseView) string {
	label := p.name
	if p.parallel {
		label += " (parallel)"
	}
	switch {
	case p.done && p.passed:
		return passStyle.Render("✓ " + label)
	case p.done:
		return failStyle.Render("✗ " + label)
	case p.running:
		return a.spinner.View() + " " + label
	default:
		return dimStyle.Render("  " + label)
	}
}

func (a *App) stepLine(s stepView) string {
	switch s.state {
	case stepRunning:
		return a.spinner.View() + " " + s.name
	case stepPassed:
		return passStyle.Render(fmt.Sprintf("✓ %s (%.1fs)", s.name, s.duration))
	case stepFailed:
		return failStyle.Render(fmt.Sprintf("✗ %s (%.1fs)", s.name, s.duration))
	case stepCached:
		return cachedStyle.Render("◌ " + s.name + " (cached)")
	default:
		return dimStyle.Render("· " + s.name)
	}
}

func (a *App) footer() string {
	if !a.done {
		return dimStyle.Render(fmt.Sprintf("running %.0fs | q to abort", time.Since(a.started).Seconds()))
	}
	if a.err != nil {
		return failStyle.Render("error: " + a.err.Error())
	}
	if a.result != nil && a.result.Passed {
		return passStyle.Render(a.result.Summary)
	}
	if a.result != nil {
		return failStyle.Render(a.result.Summary)
	}
	return ""
}

func (a *App) findPhase(name string) *phaseView {
	for i := range a.phases {
		if a.phases[i].name == name {
			return &a.phases[i]
		}
	}
	return nil
}

func (a *App) findStep(phase, step string) *stepView {
	pv := a.findPhase(phase)
	if pv == nil {
		return nil
	}
	for i := range pv.steps {
		if pv.steps[i].name == step {
			return &pv.steps[i]
		}
	}
	return nil
}
