// Package procexec spawns shell commands in their own process groups and
// provides whole-group termination.
package procexec

// StreamFunc receives one chunk of raw output as it arrives. Chunks are
// delivered in arrival order per stream; callers that need line framing
// buffer across chunks themselves.
type StreamFunc func(chunk []byte)

// SpawnOptions configures a single spawn.
type SpawnOptions struct {
	// Dir is the working directory; empty means inherit.
	Dir string
	// Env is an overlay of KEY=VALUE entries appended to the parent
	// environment.
	Env []string
	// OnStdout receives raw stdout chunks. May be nil.
	OnStdout StreamFunc
	// OnStderr receives raw stderr chunks. May be nil.
	OnStderr StreamFunc
}

// Runner defines the interface for spawning step commands.
// This abstraction allows mocking process execution in tests.
type Runner interface {
	// Spawn starts command through "sh -c" in a fresh process group and
	// returns a handle for waiting and termination.
	Spawn(command string, opts SpawnOptions) (*Handle, error)
}

// SyntheticFailureCode is the exit code substituted when a process dies
// without a real exit status (killed by signal). Abnormal termination is
// always a failure, never a success.
const SyntheticFailureCode = 1

// NormalizeExitCode maps abnormal exit states to SyntheticFailureCode.
// os/exec reports signal death as a negative exit code.
func NormalizeExitCode(code int) int {
	if code < 0 {
		return SyntheticFailureCode
	}
	return code
}
