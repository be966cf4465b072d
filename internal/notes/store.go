// Package notes persists content-addressed metadata in git notes refs.
//
// Notes attach arbitrary content to raw object hashes under a named ref
// namespace. preflight owns everything under refs/notes/preflight; the
// destructive bulk operations in this package refuse to act outside it.
package notes

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Namespace is the reserved notes-ref namespace preflight owns. Bulk ref
// deletion never operates outside it.
const Namespace = "refs/notes/preflight"

var (
	// ErrNoteNotFound is returned when no note exists for a hash.
	ErrNoteNotFound = errors.New("note not found")
	// ErrNotHexHash is returned when a note target is not a raw hex
	// object hash. Symbolic names (branches, HEAD) are movable pointers
	// and would silently attach history to a shifting target.
	ErrNotHexHash = errors.New("note target is not a raw hex object hash")
	// ErrOutsideNamespace is returned when a bulk ref operation is
	// requested outside the reserved preflight namespace.
	ErrOutsideNamespace = errors.New("ref prefix outside reserved preflight namespace")
	// ErrRefNotFound is returned when a notes ref does not exist.
	ErrRefNotFound = errors.New("notes ref not found")
)

// hexHashPattern matches raw (possibly abbreviated) hex object digests.
var hexHashPattern = regexp.MustCompile(`^[0-9a-f]{4,64}$`)

// Note is one (target hash, content) pair from a listing.
type Note struct {
	// Hash is the object hash the note is attached to.
	Hash string
	// Content is the raw note content.
	Content string
}

// Store reads and writes git notes in one repository.
type Store struct {
	repoPath string
}

// NewStore creates a notes store for the repository at repoPath.
func NewStore(repoPath string) *Store {
	return &Store{repoPath: repoPath}
}

// AddNote attaches content to hash under ref. When force is false and a
// note already exists at hash, the returned error satisfies IsConflict;
// callers implement their own merge discipline on top (see history
// package).
func (s *Store) AddNote(ctx context.Context, ref, hash, content string, force bool) error {
	if err := validateHash(hash); err != nil {
		return err
	}
	args := []string{"notes", "--ref", QualifyRef(ref), "add"}
	if force {
		args = append(args, "-f")
	}
	// -F - reads the note body from stdin, avoiding argv length limits
	// for large histories.
	args = append(args, "-F", "-", hash)
	_, err := s.run(ctx, content, args...)
	if err != nil {
		return fmt.Errorf("add note for %s: %w", hash, err)
	}
	return nil
}

// ReadNote returns the note content for hash under ref, or ErrNoteNotFound
// when none exists. Absence is a sentinel, never a raised infrastructure
// error.
func (s *Store) ReadNote(ctx context.Context, ref, hash string) (string, error) {
	if err := validateHash(hash); err != nil {
		return "", err
	}
	out, err := s.run(ctx, "", "notes", "--ref", QualifyRef(ref), "show", hash)
	if err != nil {
		if isNoNote(err) {
			return "", ErrNoteNotFound
		}
		return "", fmt.Errorf("read note for %s: %w", hash, err)
	}
	return out, nil
}

// RemoveNote deletes the note for hash under ref. Removing a missing note
// returns ErrNoteNotFound.
func (s *Store) RemoveNote(ctx context.Context, ref, hash string) error {
	if err := validateHash(hash); err != nil {
		return err
	}
	_, err := s.run(ctx, "", "notes", "--ref", QualifyRef(ref), "remove", hash)
	if err != nil {
		if isNoNote(err) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("remove note for %s: %w", hash, err)
	}
	return nil
}

// HasNote reports whether a note exists for hash under ref.
func (s *Store) HasNote(ctx context.Context, ref, hash string) (bool, error) {
	_, err := s.ReadNote(ctx, ref, hash)
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListNotes returns every (hash, content) pair under ref. A ref that does
// not exist yet lists as empty, not as an error.
func (s *Store) ListNotes(ctx context.Context, ref string) ([]Note, error) {
	full := QualifyRef(ref)
	exists, err := s.HasNotesRef(ctx, full)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	out, err := s.run(ctx, "", "notes", "--ref", full, "list")
	if err != nil {
		return nil, fmt.Errorf("list notes under %s: %w", full, err)
	}
	if out == "" {
		return nil, nil
	}

	var result []Note
	for _, line := range strings.Split(out, "\n") {
		// Format: "<note object> <target hash>".
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		content, err := s.ReadNote(ctx, full, fields[1])
		if err != nil {
			return nil, err
		}
		result = append(result, Note{Hash: fields[1], Content: content})
	}
	return result, nil
}

// IsConflict reports whether err indicates an add that failed because a
// note already exists at the target hash. The git CLI offers no typed
// error channel, so this is necessarily a message-text check; the match
// set covers both phrasings git has used for this condition.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "existing notes") || strings.Contains(msg, "already exists")
}

// isNoNote reports whether err indicates a missing note.
func isNoNote(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no note found") || strings.Contains(msg, "No note found")
}

// validateHash rejects anything that is not a raw hex digest.
func validateHash(hash string) error {
	if !hexHashPattern.MatchString(hash) {
		return fmt.Errorf("%w: %q", ErrNotHexHash, hash)
	}
	return nil
}

// QualifyRef expands a short notes ref ("preflight/runs") to its fully
// qualified form ("refs/notes/preflight/runs"). Already-qualified refs
// pass through unchanged.
func QualifyRef(ref string) string {
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/notes/" + ref
}

// run executes a git command in the repository, optionally feeding stdin,
// and returns trimmed combined output.
func (s *Store) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoPath
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}
