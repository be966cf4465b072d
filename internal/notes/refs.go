package notes

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ListNotesRefs enumerates all refs nested under pathPrefix (short or
// fully qualified). Unlike RemoveNotesRefs, listing is read-only and may
// look at any prefix.
func (s *Store) ListNotesRefs(ctx context.Context, pathPrefix string) ([]string, error) {
	out, err := s.run(ctx, "", "for-each-ref", "--format=%(refname)", QualifyRef(pathPrefix))
	if err != nil {
		return nil, fmt.Errorf("list refs under %s: %w", pathPrefix, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// RemoveNotesRefs deletes every ref nested under pathPrefix. Bulk ref
// deletion is destructive and irreversible, so the prefix must fall
// inside the reserved preflight namespace; anything else returns
// ErrOutsideNamespace before touching the repository. Refs outside the
// namespace that show up in the enumeration are skipped, never deleted.
func (s *Store) RemoveNotesRefs(ctx context.Context, pathPrefix string) error {
	full := QualifyRef(pathPrefix)
	if !inNamespace(full) {
		return fmt.Errorf("%w: %q", ErrOutsideNamespace, pathPrefix)
	}

	refs, err := s.ListNotesRefs(ctx, full)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if !inNamespace(ref) {
			continue
		}
		if _, err := s.run(ctx, "", "update-ref", "-d", ref); err != nil {
			return fmt.Errorf("delete ref %s: %w", ref, err)
		}
	}
	return nil
}

// HasNotesRef reports whether the notes ref exists, accepting short or
// fully qualified forms.
func (s *Store) HasNotesRef(ctx context.Context, ref string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--verify", "--quiet", QualifyRef(ref))
	cmd.Dir = s.repoPath
	if err := cmd.Run(); err != nil {
		// Exit code 1 means the ref doesn't exist (not an error).
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check notes ref %s: %w", ref, err)
	}
	return true, nil
}

// GetNotesRefSha returns the commit the notes ref currently points at, or
// ErrRefNotFound when the ref does not exist.
func (s *Store) GetNotesRefSha(ctx context.Context, ref string) (string, error) {
	exists, err := s.HasNotesRef(ctx, ref)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrRefNotFound, ref)
	}
	sha, err := s.run(ctx, "", "rev-parse", "--verify", QualifyRef(ref))
	if err != nil {
		return "", fmt.Errorf("resolve notes ref %s: %w", ref, err)
	}
	return sha, nil
}

// inNamespace reports whether a fully qualified ref lives inside the
// reserved preflight namespace.
func inNamespace(fullRef string) bool {
	return fullRef == Namespace || strings.HasPrefix(fullRef, Namespace+"/")
}
