package procexec

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSpawnCapturesBothStreams(t *testing.T) {
	var mu sync.Mutex
	var out, errOut bytes.Buffer

	e := NewExecutor()
	h, err := e.Spawn(`echo hello; echo oops >&2`, SpawnOptions{
		OnStdout: func(chunk []byte) {
			mu.Lock()
			out.Write(chunk)
			mu.Unlock()
		},
		OnStderr: func(chunk []byte) {
			mu.Lock()
			errOut.Write(chunk)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if code := h.Wait(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	mu.Lock()
	defer mu.Unlock()
	if got := strings.TrimSpace(out.String()); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
	if got := strings.TrimSpace(errOut.String()); got != "oops" {
		t.Errorf("stderr = %q, want %q", got, "oops")
	}
}

func TestSpawnEnvOverlay(t *testing.T) {
	var mu sync.Mutex
	var out bytes.Buffer

	e := NewExecutor()
	h, err := e.Spawn(`echo "$PREFLIGHT_TEST_VAR"`, SpawnOptions{
		Env: []string{"PREFLIGHT_TEST_VAR=overlay-value"},
		OnStdout: func(chunk []byte) {
			mu.Lock()
			out.Write(chunk)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	h.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got := strings.TrimSpace(out.String()); got != "overlay-value" {
		t.Errorf("env overlay not visible to child: got %q", got)
	}
}

func TestWaitReturnsNonzeroExit(t *testing.T) {
	e := NewExecutor()
	h, err := e.Spawn("exit 3", SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if code := h.Wait(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestTerminateKillsProcessGroup(t *testing.T) {
	e := NewExecutor()
	// The shell forks a child; group kill must take out both.
	h, err := e.Spawn("sleep 30", SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	start := time.Now()
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Terminate took %v, expected well under sleep duration", elapsed)
	}

	// Signal death must never read as success.
	if code := NormalizeExitCode(h.Wait()); code == 0 {
		t.Error("terminated process normalized to exit 0")
	}
}

func TestTerminateAfterExitIsNoop(t *testing.T) {
	e := NewExecutor()
	h, err := e.Spawn("true", SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	h.Wait()

	if err := h.Terminate(); err != nil {
		t.Errorf("Terminate on exited process: %v, want nil", err)
	}
}

func TestNormalizeExitCode(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 0},
		{1, 1},
		{42, 42},
		{-1, SyntheticFailureCode},
	}
	for _, tc := range cases {
		if got := NormalizeExitCode(tc.in); got != tc.want {
			t.Errorf("NormalizeExitCode(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
