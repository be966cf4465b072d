package procexec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// terminateGrace is how long Terminate waits after SIGTERM before
// escalating to SIGKILL.
const terminateGrace = 2 * time.Second

// Executor implements Runner using os/exec.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Handle tracks one spawned process until it closes.
type Handle struct {
	cmd *exec.Cmd
	// pgid is the process group created for the child. Shells fork
	// grandchildren; signaling only the direct PID would orphan them.
	pgid int
	// done is closed once both streams are drained and the process has
	// been reaped.
	done     chan struct{}
	exitCode int
}

// Spawn starts command through "sh -c" in a fresh process group.
// Output flows to the OnStdout/OnStderr callbacks from dedicated reader
// goroutines; the handle's done channel closes only after both streams
// hit EOF and the process is reaped.
func (e *Executor) Spawn(command string, opts SpawnOptions) (*Handle, error) {
	cmd := exec.Command("sh", "-c", command)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %q: %w", command, err)
	}

	h := &Handle{
		cmd:  cmd,
		pgid: cmd.Process.Pid,
		done: make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go drain(stdout, opts.OnStdout, &readers)
	go drain(stderr, opts.OnStderr, &readers)

	go func() {
		readers.Wait()
		err := cmd.Wait()
		h.exitCode = exitCodeFrom(cmd, err)
		close(h.done)
	}()

	return h, nil
}

// drain reads r to EOF, forwarding chunks to fn.
func drain(r io.Reader, fn StreamFunc, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && fn != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			fn(chunk)
		}
		if err != nil {
			return
		}
	}
}

// exitCodeFrom extracts the raw exit code from a completed command.
// Signal death surfaces as -1.
func exitCodeFrom(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	// Wait itself failed; treat as abnormal termination.
	return -1
}

// Wait blocks until the process closes and returns its raw exit code
// (-1 for abnormal termination; see NormalizeExitCode).
func (h *Handle) Wait() int {
	<-h.done
	return h.exitCode
}

// Done returns a channel closed when the process has fully closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Pid returns the direct child's PID.
func (h *Handle) Pid() int {
	return h.pgid
}

// Terminate kills the entire process group: SIGTERM first, SIGKILL after
// a grace period, then waits for the handle to close. An already-exited
// process is a non-error outcome.
func (h *Handle) Terminate() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	// ESRCH means the group already exited between the done check and
	// the signal; the closer goroutine will close done shortly.
	if err := syscall.Kill(-h.pgid, syscall.SIGTERM); err != nil {
		<-h.done
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(terminateGrace):
	}

	_ = syscall.Kill(-h.pgid, syscall.SIGKILL)
	<-h.done
	return nil
}
