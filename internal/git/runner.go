// Package git provides repository inspection for run records: branch,
// HEAD commit and dirty state. Tree hashing and notes access live in
// their own packages.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Inspector reads repository state for run metadata.
type Inspector interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// HeadCommit returns the full sha of HEAD.
	HeadCommit() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// RepoRoot returns the absolute path of the repository root.
	RepoRoot() (string, error)
}

// ExecRunner implements Inspector using exec.Command.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// run executes a git command and returns its output.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the name of the current branch. A detached HEAD
// reports "HEAD".
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// HeadCommit returns the full sha of HEAD. An unborn branch is reported
// as an empty sha, not an error.
func (r *ExecRunner) HeadCommit() (string, error) {
	sha, err := r.run("rev-parse", "HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "unknown revision") {
			return "", nil
		}
		return "", err
	}
	return sha, nil
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status() (string, error) {
	return r.run("status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// RepoRoot returns the absolute path of the repository root.
func (r *ExecRunner) RepoRoot() (string, error) {
	return r.run("rev-parse", "--show-toplevel")
}

var _ Inspector = (*ExecRunner)(nil)
