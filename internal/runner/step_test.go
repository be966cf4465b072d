package runner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cormorantdev/preflight/internal/extract"
	"github.com/cormorantdev/preflight/internal/procexec"
	"github.com/cormorantdev/preflight/pkg/models"
)

func newTestStepExecutor(opts StepOptions) *StepExecutor {
	return NewStepExecutor(procexec.NewExecutor(), extract.NewRegexExtractor(), NewRegistry(), opts)
}

func TestExecutePassingStep(t *testing.T) {
	e := newTestStepExecutor(StepOptions{})
	result := e.Execute(models.ValidationStep{Name: "ok", Command: "echo fine"})

	if !result.Passed {
		t.Errorf("Passed = false, want true")
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Extraction != nil {
		t.Errorf("Extraction = %+v, want nil for passing step", result.Extraction)
	}
	if result.OutputFiles != nil {
		t.Errorf("OutputFiles = %+v, want nil for passing step outside debug", result.OutputFiles)
	}
}

func TestExecuteFailingStepExtracts(t *testing.T) {
	e := newTestStepExecutor(StepOptions{})
	result := e.Execute(models.ValidationStep{
		Name:    "broken",
		Command: `echo "main.go:3:1: syntax error" >&2; exit 2`,
	})

	if result.Passed {
		t.Fatal("Passed = true, want false")
	}
	if result.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", result.ExitCode)
	}
	if result.Extraction == nil {
		t.Fatal("Extraction = nil, want populated for failing step with output")
	}
	if !strings.Contains(result.Extraction.Summary, "main.go:3") {
		t.Errorf("Extraction.Summary = %q", result.Extraction.Summary)
	}
}

func TestExecuteSignalDeathNeverPasses(t *testing.T) {
	e := newTestStepExecutor(StepOptions{})
	// The child kills itself; exit state is signal death, not an exit
	// code.
	result := e.Execute(models.ValidationStep{Name: "suicidal", Command: "kill -TERM $$"})

	if result.Passed {
		t.Error("signal-killed step classified as passed")
	}
	if result.ExitCode == 0 {
		t.Error("ExitCode = 0 for signal death, want synthetic failure code")
	}
}

func TestExecuteStripsAnsiButMirrorsRaw(t *testing.T) {
	var mirror bytes.Buffer
	dir := t.TempDir()
	e := newTestStepExecutor(StepOptions{
		Verbose:      true,
		Debug:        true,
		OutputDir:    dir,
		MirrorStdout: &mirror,
		MirrorStderr: &mirror,
	})

	result := e.Execute(models.ValidationStep{
		Name:    "colorful",
		Command: `printf '\033[31mred alert\033[0m\n'`,
	})
	if !result.Passed {
		t.Fatalf("step failed: %+v", result)
	}

	// Real-time mirror keeps the escapes.
	if !strings.Contains(mirror.String(), "\x1b[31m") {
		t.Errorf("mirror lost escape sequences: %q", mirror.String())
	}

	// Stored copy is escape-free.
	if result.OutputFiles == nil || result.OutputFiles.Stdout == "" {
		t.Fatal("no stdout file persisted in debug mode")
	}
	stored, err := os.ReadFile(result.OutputFiles.Stdout)
	if err != nil {
		t.Fatalf("read stored stdout: %v", err)
	}
	if strings.Contains(string(stored), "\x1b[") {
		t.Errorf("stored copy contains escapes: %q", stored)
	}
	if !strings.Contains(string(stored), "red alert") {
		t.Errorf("stored copy missing content: %q", stored)
	}
}

func TestCaptureStripsEscapeSplitAcrossChunks(t *testing.T) {
	// Pipe reads can hand over a chunk boundary mid-sequence; the two
	// halves must reassemble before stripping or the tail leaks through
	// as text.
	c := newCapture()
	c.ingest(models.StreamStdout, []byte("\x1b["))
	c.ingest(models.StreamStdout, []byte("31mred alert\x1b[0m\n"))
	c.finish()

	if got := c.combined(); got != "red alert\n" {
		t.Errorf("combined = %q, want %q", got, "red alert\n")
	}
	if got := c.stdout.String(); got != "red alert\n" {
		t.Errorf("stdout buffer = %q, want %q", got, "red alert\n")
	}
}

func TestCaptureStripsEscapeInTrailingPartial(t *testing.T) {
	c := newCapture()
	c.ingest(models.StreamStderr, []byte("warn\x1b[3"))
	c.ingest(models.StreamStderr, []byte("3m!"))
	c.finish()

	if got := c.stderr.String(); got != "warn!" {
		t.Errorf("stderr buffer = %q, want %q", got, "warn!")
	}
	if len(c.lines) != 1 || c.lines[0].Text != "warn!" {
		t.Errorf("lines = %+v, want single clean line", c.lines)
	}
}

func TestExecutePersistsOnFailure(t *testing.T) {
	dir := t.TempDir()
	e := newTestStepExecutor(StepOptions{OutputDir: dir})

	result := e.Execute(models.ValidationStep{
		Name:    "fail with output",
		Command: "echo out; echo err >&2; exit 1",
	})
	if result.OutputFiles == nil {
		t.Fatal("OutputFiles = nil, want persisted files on failure")
	}

	// Step names are sanitized for the filesystem.
	if base := filepath.Base(result.OutputFiles.Stdout); strings.ContainsAny(base, " ") {
		t.Errorf("unsanitized file name %q", base)
	}
	for name, p := range map[string]string{
		"stdout":   result.OutputFiles.Stdout,
		"stderr":   result.OutputFiles.Stderr,
		"combined": result.OutputFiles.Combined,
	} {
		if p == "" {
			t.Errorf("%s path empty", name)
			continue
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s file missing: %v", name, err)
		}
	}
}

func TestExecutePersistenceFailureDoesNotFailStep(t *testing.T) {
	// Point output at a path that cannot be a directory.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	e := newTestStepExecutor(StepOptions{OutputDir: filepath.Join(blocker, "nested")})

	result := e.Execute(models.ValidationStep{Name: "fails", Command: "echo hi; exit 1"})
	if result.Passed {
		t.Error("step passed, want failure from exit code")
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1 (persistence trouble must not change classification)", result.ExitCode)
	}
	if result.OutputFiles != nil {
		t.Errorf("OutputFiles = %+v, want nil when persistence failed", result.OutputFiles)
	}
}

func TestExecuteInterleavedLineLogOrdering(t *testing.T) {
	dir := t.TempDir()
	e := newTestStepExecutor(StepOptions{Debug: true, OutputDir: dir})

	// Alternate streams with small gaps so arrival order is stable.
	result := e.Execute(models.ValidationStep{
		Name:    "interleave",
		Command: `echo one; sleep 0.05; echo two >&2; sleep 0.05; echo three`,
	})
	if result.OutputFiles == nil || result.OutputFiles.Combined == "" {
		t.Fatal("no combined log persisted")
	}
	data, err := os.ReadFile(result.OutputFiles.Combined)
	if err != nil {
		t.Fatalf("read combined log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("combined log has %d lines, want 3: %q", len(lines), data)
	}
	wantOrder := []struct {
		stream, text string
	}{
		{"stdout", "one"},
		{"stderr", "two"},
		{"stdout", "three"},
	}
	for i, want := range wantOrder {
		if !strings.Contains(lines[i], `"stream":"`+want.stream+`"`) ||
			!strings.Contains(lines[i], `"text":"`+want.text+`"`) {
			t.Errorf("line %d = %s, want stream=%s text=%s", i, lines[i], want.stream, want.text)
		}
	}
}
