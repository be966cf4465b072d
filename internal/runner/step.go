package runner

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cormorantdev/preflight/internal/ansi"
	"github.com/cormorantdev/preflight/internal/extract"
	"github.com/cormorantdev/preflight/internal/procexec"
	"github.com/cormorantdev/preflight/pkg/models"
)

// StepOptions configures step execution.
type StepOptions struct {
	// WorkDir is the working directory for step commands.
	WorkDir string
	// Env is a KEY=VALUE overlay applied to every step.
	Env []string
	// Verbose mirrors raw (unstripped) output to the terminal in real
	// time. The accumulated copy is always escape-free regardless.
	Verbose bool
	// Debug forces extraction and output persistence even for passing
	// steps.
	Debug bool
	// OutputDir is the tree-hash-scoped directory for persisted step
	// output. Empty disables persistence.
	OutputDir string
	// MirrorStdout and MirrorStderr receive the raw verbose mirror;
	// nil defaults to the process's own stdout/stderr.
	MirrorStdout io.Writer
	MirrorStderr io.Writer
}

// StepExecutor runs one step at a time through the process executor.
// Safe for concurrent use; parallel phases call Execute from multiple
// goroutines.
type StepExecutor struct {
	proc      procexec.Runner
	extractor extract.Extractor
	registry  *Registry
	opts      StepOptions
}

// NewStepExecutor creates a step executor.
func NewStepExecutor(proc procexec.Runner, extractor extract.Extractor, registry *Registry, opts StepOptions) *StepExecutor {
	if opts.MirrorStdout == nil {
		opts.MirrorStdout = os.Stdout
	}
	if opts.MirrorStderr == nil {
		opts.MirrorStderr = os.Stderr
	}
	return &StepExecutor{proc: proc, extractor: extractor, registry: registry, opts: opts}
}

// capture accumulates step output: escape-free per-stream buffers plus a
// timestamped line log interleaving both streams in arrival order. A
// plain "stdout then stderr" concatenation would lose temporal ordering,
// which replay and debugging need.
//
// Raw chunks are buffered per stream and stripped at line granularity,
// never per chunk: pipe reads can split an escape sequence across two
// chunks, and stripping the halves separately mangles it (the bare
// escape prefix is deleted, the tail survives as garbage text). The
// partial buffers therefore hold raw bytes until a newline or finish.
type capture struct {
	mu      sync.Mutex
	lines   []models.OutputLine
	stdout  strings.Builder
	stderr  strings.Builder
	partial map[models.OutputStream]string
}

func newCapture() *capture {
	return &capture{partial: make(map[models.OutputStream]string)}
}

func (c *capture) streamBuf(stream models.OutputStream) *strings.Builder {
	if stream == models.StreamStderr {
		return &c.stderr
	}
	return &c.stdout
}

// ingest folds a raw chunk into the stream buffer and the interleaved
// line log, stripping escapes once each line is complete.
func (c *capture) ingest(stream models.OutputStream, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.partial[stream] + string(raw)
	now := time.Now()
	for {
		nl := strings.IndexByte(buf, '\n')
		if nl < 0 {
			break
		}
		clean := ansi.Strip(buf[:nl])
		buf = buf[nl+1:]
		c.lines = append(c.lines, models.OutputLine{Time: now, Stream: stream, Text: clean})
		c.streamBuf(stream).WriteString(clean)
		c.streamBuf(stream).WriteByte('\n')
	}
	c.partial[stream] = buf
}

// finish strips and flushes trailing partial lines into the log.
func (c *capture) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, stream := range []models.OutputStream{models.StreamStdout, models.StreamStderr} {
		p := c.partial[stream]
		c.partial[stream] = ""
		if p == "" {
			continue
		}
		clean := ansi.Strip(p)
		if clean == "" {
			continue
		}
		c.lines = append(c.lines, models.OutputLine{Time: now, Stream: stream, Text: clean})
		c.streamBuf(stream).WriteString(clean)
	}
}

// combined renders the interleaved log as plain text.
func (c *capture) combined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, l := range c.lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Execute runs one step to completion and classifies the outcome. Step
// failure is data (Passed=false), never an error; spawn failures are
// reported the same way so phase aggregation always has a result per
// attempted step.
func (e *StepExecutor) Execute(step models.ValidationStep) models.StepResult {
	start := time.Now()
	outbuf := newCapture()

	handle, err := e.proc.Spawn(step.Command, procexec.SpawnOptions{
		Dir: e.opts.WorkDir,
		Env: e.opts.Env,
		OnStdout: func(chunk []byte) {
			if e.opts.Verbose {
				e.opts.MirrorStdout.Write(chunk)
			}
			outbuf.ingest(models.StreamStdout, chunk)
		},
		OnStderr: func(chunk []byte) {
			if e.opts.Verbose {
				e.opts.MirrorStderr.Write(chunk)
			}
			outbuf.ingest(models.StreamStderr, chunk)
		},
	})
	if err != nil {
		return models.StepResult{
			Name:         step.Name,
			Command:      step.Command,
			Passed:       false,
			ExitCode:     procexec.SyntheticFailureCode,
			DurationSecs: time.Since(start).Seconds(),
			Extraction: &models.ErrorExtractorResult{
				Summary:     "failed to spawn command: " + err.Error(),
				TotalErrors: 1,
			},
		}
	}

	token := e.registry.Add(handle)
	rawCode := handle.Wait()
	e.registry.Remove(token)
	outbuf.finish()

	exitCode := procexec.NormalizeExitCode(rawCode)
	result := models.StepResult{
		Name:         step.Name,
		Command:      step.Command,
		Passed:       exitCode == 0,
		ExitCode:     exitCode,
		DurationSecs: time.Since(start).Seconds(),
	}

	combined := outbuf.combined()
	if nested, ok := ParseEmbeddedResult(combined); ok {
		// The step ran preflight itself; propagate the inner result's
		// extraction and cache status rather than re-deriving them.
		result.Extraction = nestedExtraction(nested)
		result.IsCachedResult = nestedAllCached(nested)
	} else if (!result.Passed || e.opts.Debug) && strings.TrimSpace(combined) != "" {
		result.Extraction = e.extractor.Extract(combined)
	}

	if !result.Passed || e.opts.Debug {
		result.OutputFiles = e.persistOutput(step, outbuf)
	}

	return result
}

// unsafeNameChars matches everything not allowed in persisted file names.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// persistOutput writes stdout, stderr, and the structured interleaved log
// under the tree-hash-scoped output directory. Persistence is best-effort
// telemetry: failures are warned about (when verbose) and never fail the
// step.
func (e *StepExecutor) persistOutput(step models.ValidationStep, outbuf *capture) *models.OutputFiles {
	if e.opts.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.opts.OutputDir, 0755); err != nil {
		e.warnf("create output dir %s: %v", e.opts.OutputDir, err)
		return nil
	}

	base := unsafeNameChars.ReplaceAllString(step.Name, "-")
	files := &models.OutputFiles{}

	outbuf.mu.Lock()
	stdout, stderr := outbuf.stdout.String(), outbuf.stderr.String()
	lines := make([]models.OutputLine, len(outbuf.lines))
	copy(lines, outbuf.lines)
	outbuf.mu.Unlock()

	stdoutPath := filepath.Join(e.opts.OutputDir, base+".stdout.log")
	if err := os.WriteFile(stdoutPath, []byte(stdout), 0644); err != nil {
		e.warnf("write %s: %v", stdoutPath, err)
	} else {
		files.Stdout = stdoutPath
	}

	stderrPath := filepath.Join(e.opts.OutputDir, base+".stderr.log")
	if err := os.WriteFile(stderrPath, []byte(stderr), 0644); err != nil {
		e.warnf("write %s: %v", stderrPath, err)
	} else {
		files.Stderr = stderrPath
	}

	combinedPath := filepath.Join(e.opts.OutputDir, base+".combined.jsonl")
	if err := writeLineLog(combinedPath, lines); err != nil {
		e.warnf("write %s: %v", combinedPath, err)
	} else {
		files.Combined = combinedPath
	}

	if files.Stdout == "" && files.Stderr == "" && files.Combined == "" {
		return nil
	}
	return files
}

// writeLineLog persists the interleaved log as one JSON object per line.
func writeLineLog(path string, lines []models.OutputLine) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}

func (e *StepExecutor) warnf(format string, args ...interface{}) {
	if e.opts.Verbose {
		log.Printf("[runner] warning: "+format, args...)
	}
}
