package runner

import (
	"sync"
	"testing"
	"time"

	"github.com/cormorantdev/preflight/internal/extract"
	"github.com/cormorantdev/preflight/internal/procexec"
	"github.com/cormorantdev/preflight/pkg/models"
)

func newTestScheduler(failFast bool) (*PhaseScheduler, *Registry) {
	reg := NewRegistry()
	steps := NewStepExecutor(procexec.NewExecutor(), extract.NewRegexExtractor(), reg, StepOptions{})
	return NewPhaseScheduler(steps, reg, &callbackDispatcher{}, failFast), reg
}

func TestSequentialStopsAtFirstFailure(t *testing.T) {
	sched, _ := newTestScheduler(true)
	result, failedStep := sched.Run(models.ValidationPhase{
		Name: "seq",
		Steps: []models.ValidationStep{
			{Name: "A", Command: "exit 0"},
			{Name: "B", Command: "exit 1"},
			{Name: "C", Command: "exit 0"},
		},
	})

	if result.Passed {
		t.Error("phase passed, want failure")
	}
	if failedStep != "B" {
		t.Errorf("failedStep = %q, want B", failedStep)
	}
	// C never executes: exactly two step results.
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	if result.Steps[0].Name != "A" || result.Steps[1].Name != "B" {
		t.Errorf("steps = [%s, %s], want [A, B]", result.Steps[0].Name, result.Steps[1].Name)
	}
}

func TestSequentialWithoutFailFastRunsEverything(t *testing.T) {
	sched, _ := newTestScheduler(false)
	result, failedStep := sched.Run(models.ValidationPhase{
		Name: "seq",
		Steps: []models.ValidationStep{
			{Name: "A", Command: "exit 1"},
			{Name: "B", Command: "exit 0"},
			{Name: "C", Command: "exit 1"},
		},
	})

	if len(result.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3 (all run without fail-fast)", len(result.Steps))
	}
	if result.Passed {
		t.Error("phase passed with failing steps")
	}
	// First failure is cited for convenience.
	if failedStep != "A" {
		t.Errorf("failedStep = %q, want A", failedStep)
	}
}

func TestParallelFailFastKillsSiblings(t *testing.T) {
	sched, _ := newTestScheduler(true)

	start := time.Now()
	result, failedStep := sched.Run(models.ValidationPhase{
		Name:     "par",
		Parallel: true,
		Steps: []models.ValidationStep{
			{Name: "A", Command: "sleep 0.1; exit 1"},
			{Name: "B", Command: "sleep 10; exit 0"},
		},
	})
	elapsed := time.Since(start)

	if result.Passed {
		t.Error("phase passed, want failure")
	}
	if failedStep != "A" {
		t.Errorf("failedStep = %q, want A (the fail-fast trigger)", failedStep)
	}
	// B must have been terminated, not run to completion.
	if elapsed > 6*time.Second {
		t.Errorf("phase took %v; sibling was not killed", elapsed)
	}
	// No step result is silently dropped: killed steps still report.
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	for _, s := range result.Steps {
		if s.Name == "B" && s.Passed {
			t.Error("killed sibling reported as passed")
		}
	}
}

func TestParallelAllPass(t *testing.T) {
	sched, reg := newTestScheduler(true)
	result, failedStep := sched.Run(models.ValidationPhase{
		Name:     "par",
		Parallel: true,
		Steps: []models.ValidationStep{
			{Name: "A", Command: "sleep 0.05"},
			{Name: "B", Command: "sleep 0.05"},
			{Name: "C", Command: "true"},
		},
	})

	if !result.Passed {
		t.Errorf("phase failed: %+v", result)
	}
	if failedStep != "" {
		t.Errorf("failedStep = %q, want empty", failedStep)
	}
	if len(result.Steps) != 3 {
		t.Errorf("len(Steps) = %d, want 3", len(result.Steps))
	}
	// Results keep configured order regardless of completion order.
	for i, want := range []string{"A", "B", "C"} {
		if result.Steps[i].Name != want {
			t.Errorf("Steps[%d] = %s, want %s", i, result.Steps[i].Name, want)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("registry still tracks %d handles after phase", reg.Len())
	}
}

func TestParallelExactlyOneTrigger(t *testing.T) {
	// Several steps failing near-simultaneously: exactly one is recorded
	// as the trigger, and it is one of the failing steps.
	sched, _ := newTestScheduler(true)
	result, failedStep := sched.Run(models.ValidationPhase{
		Name:     "par",
		Parallel: true,
		Steps: []models.ValidationStep{
			{Name: "A", Command: "exit 1"},
			{Name: "B", Command: "exit 1"},
			{Name: "C", Command: "exit 1"},
		},
	})

	if result.Passed {
		t.Error("phase passed, want failure")
	}
	if failedStep != "A" && failedStep != "B" && failedStep != "C" {
		t.Errorf("failedStep = %q, want one of the failing steps", failedStep)
	}
}

func TestCallbacksFireForEveryStep(t *testing.T) {
	var mu sync.Mutex
	started := map[string]int{}
	completed := map[string]int{}

	reg := NewRegistry()
	steps := NewStepExecutor(procexec.NewExecutor(), extract.NewRegexExtractor(), reg, StepOptions{})
	dispatch := &callbackDispatcher{cb: Callbacks{
		OnStepStart: func(s models.ValidationStep) {
			mu.Lock()
			started[s.Name]++
			mu.Unlock()
		},
		OnStepComplete: func(s models.ValidationStep, r models.StepResult) {
			mu.Lock()
			completed[s.Name]++
			mu.Unlock()
		},
	}}
	sched := NewPhaseScheduler(steps, reg, dispatch, true)

	sched.Run(models.ValidationPhase{
		Name:     "par",
		Parallel: true,
		Steps: []models.ValidationStep{
			{Name: "A", Command: "true"},
			{Name: "B", Command: "true"},
		},
	})

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"A", "B"} {
		if started[name] != 1 || completed[name] != 1 {
			t.Errorf("step %s: started=%d completed=%d, want 1/1", name, started[name], completed[name])
		}
	}
}
