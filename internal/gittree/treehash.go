// Package gittree computes deterministic content hashes of a git working
// tree, including per-submodule commit state.
package gittree

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Provider defines the interface for computing working-tree hashes.
// Implementations must be deterministic and side-effect-free on the
// repository: identical file content and identical submodule commit
// states always produce the same hash.
type Provider interface {
	// ComputeTreeHash returns the current working-tree hash.
	ComputeTreeHash(ctx context.Context) (models.TreeHash, error)
}

// GitProvider implements Provider using the git CLI. The hash is a real
// git tree object id built through a throwaway index file, so it depends
// only on tracked/untracked file content and submodule pointers, never
// on timestamps or commit metadata, and it creates no stash commits.
type GitProvider struct {
	repoPath string
}

// NewProvider creates a tree hash provider for the repository at repoPath.
func NewProvider(repoPath string) *GitProvider {
	return &GitProvider{repoPath: repoPath}
}

// ComputeTreeHash stages the full working tree into a temporary index and
// writes a tree object from it.
func (p *GitProvider) ComputeTreeHash(ctx context.Context) (models.TreeHash, error) {
	tmpDir, err := os.MkdirTemp("", "preflight-index-")
	if err != nil {
		return models.TreeHash{}, fmt.Errorf("create temp index dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	indexEnv := []string{"GIT_INDEX_FILE=" + filepath.Join(tmpDir, "index")}

	// Stage everything (respecting .gitignore) into the throwaway index.
	// The real index and working tree are untouched.
	if _, err := p.run(ctx, indexEnv, "add", "-A"); err != nil {
		return models.TreeHash{}, fmt.Errorf("stage working tree: %w", err)
	}

	hash, err := p.run(ctx, indexEnv, "write-tree")
	if err != nil {
		return models.TreeHash{}, fmt.Errorf("write tree: %w", err)
	}

	subs, err := p.submoduleHashes(ctx)
	if err != nil {
		return models.TreeHash{}, err
	}

	return models.TreeHash{Hash: hash, SubmoduleHashes: subs}, nil
}

// submoduleHashes returns the commit pointer of each submodule, keyed by
// path. Returns nil when the repository has no submodules.
func (p *GitProvider) submoduleHashes(ctx context.Context) (map[string]string, error) {
	out, err := p.run(ctx, nil, "submodule", "status")
	if err != nil {
		return nil, fmt.Errorf("submodule status: %w", err)
	}
	if out == "" {
		return nil, nil
	}

	subs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		// Format: "<state char><sha1> <path> (<describe>)" where the
		// leading char is ' ', '+', '-' or 'U'.
		line = strings.TrimSpace(strings.TrimLeft(line, " +-U"))
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		subs[fields[1]] = fields[0]
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return subs, nil
}

// run executes a git command in the repository and returns trimmed output.
func (p *GitProvider) run(ctx context.Context, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoPath
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// Verify GitProvider implements Provider at compile time.
var _ Provider = (*GitProvider)(nil)
