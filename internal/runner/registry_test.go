package runner

import (
	"testing"
	"time"

	"github.com/cormorantdev/preflight/internal/procexec"
)

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()
	e := procexec.NewExecutor()

	h, err := e.Spawn("sleep 0.1", procexec.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	id := reg.Add(h)
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
	h.Wait()
	reg.Remove(id)
	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0", reg.Len())
	}
}

func TestRegistryTerminateAll(t *testing.T) {
	reg := NewRegistry()
	e := procexec.NewExecutor()

	var handles []*procexec.Handle
	for i := 0; i < 3; i++ {
		h, err := e.Spawn("sleep 30", procexec.SpawnOptions{})
		if err != nil {
			t.Fatalf("Spawn: %v", err)
		}
		handles = append(handles, h)
		reg.Add(h)
	}

	start := time.Now()
	reg.TerminateAll()
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("TerminateAll took %v", elapsed)
	}
	for i, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Errorf("handle %d still running after TerminateAll", i)
		}
	}
}

func TestRegistryTerminateAllEmpty(t *testing.T) {
	// No handles is a no-op, not a hang.
	NewRegistry().TerminateAll()
}

func TestRegistryAddAfterTerminateAllKillsHandle(t *testing.T) {
	// A step whose Spawn raced the fail-fast trigger registers after the
	// sweep; the latch must kill it on arrival or it runs to completion.
	reg := NewRegistry()
	reg.TerminateAll()

	e := procexec.NewExecutor()
	h, err := e.Spawn("sleep 30", procexec.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	start := time.Now()
	id := reg.Add(h)
	code := h.Wait()
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("late-added handle survived %v, want prompt termination", elapsed)
	}
	if procexec.NormalizeExitCode(code) == 0 {
		t.Errorf("terminated handle reported exit %d, want failure", code)
	}
	reg.Remove(id)
}
