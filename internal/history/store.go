// Package history stores validation run records as git notes keyed by
// tree hash, and answers cache lookups against that history.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cormorantdev/preflight/internal/notes"
	"github.com/cormorantdev/preflight/pkg/models"
)

// DefaultRef is the notes ref run history is stored under.
const DefaultRef = "preflight/runs"

// maxAppendAttempts bounds the optimistic-lock retry loop. Two writers
// finishing validation for the same tree at nearly the same time is the
// common case this absorbs; sustained contention beyond the bound is
// surfaced as an error rather than looping forever.
const maxAppendAttempts = 3

// ErrConflictRetriesExhausted is returned when every append attempt hit
// a concurrent-writer conflict.
var ErrConflictRetriesExhausted = errors.New("history append: conflict retries exhausted")

// NotesStore is the subset of the notes store the history layer needs.
type NotesStore interface {
	AddNote(ctx context.Context, ref, hash, content string, force bool) error
	ReadNote(ctx context.Context, ref, hash string) (string, error)
}

// Store persists HistoryNotes through a notes store.
type Store struct {
	notes NotesStore
	ref   string
}

// NewStore creates a history store writing under ref (DefaultRef if
// empty).
func NewStore(n NotesStore, ref string) *Store {
	if ref == "" {
		ref = DefaultRef
	}
	return &Store{notes: n, ref: ref}
}

// Ref returns the notes ref this store writes under.
func (s *Store) Ref() string {
	return s.ref
}

// AppendRun records run under treeHash using optimistic locking:
// attempt an unconditional add; on an already-exists conflict, read the
// existing note, merge the run in (existing runs first, append order
// preserved), and force-write. Any failure that is not a conflict is
// fatal and returned immediately, never retried.
func (s *Store) AppendRun(ctx context.Context, treeHash string, run models.ValidationRun) error {
	content, err := encodeNote(models.HistoryNote{TreeHash: treeHash, Runs: []models.ValidationRun{run}})
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err := s.notes.AddNote(ctx, s.ref, treeHash, content, false)
		if err == nil {
			return nil
		}
		if !notes.IsConflict(err) {
			return err
		}

		existing, err := s.notes.ReadNote(ctx, s.ref, treeHash)
		if err != nil && !errors.Is(err, notes.ErrNoteNotFound) {
			return err
		}

		merged, err := mergeNote(treeHash, existing, run)
		if err != nil {
			return err
		}

		err = s.notes.AddNote(ctx, s.ref, treeHash, merged, true)
		if err == nil {
			return nil
		}
		if !notes.IsConflict(err) {
			return err
		}
	}
	return fmt.Errorf("%w (tree %s)", ErrConflictRetriesExhausted, treeHash)
}

// ReadHistory returns the HistoryNote for treeHash, or nil when none
// exists. Absence is a miss, not an error.
func (s *Store) ReadHistory(ctx context.Context, treeHash string) (*models.HistoryNote, error) {
	content, err := s.notes.ReadNote(ctx, s.ref, treeHash)
	if err != nil {
		if errors.Is(err, notes.ErrNoteNotFound) {
			return nil, nil
		}
		return nil, err
	}
	note, err := decodeNote(content)
	if err != nil {
		return nil, fmt.Errorf("history note for %s: %w", treeHash, err)
	}
	return &note, nil
}

// mergeNote appends run to the runs already serialized in existing.
// Existing runs keep their order; the new run goes last. An empty or
// unparseable existing note degrades to a fresh single-run note rather
// than blocking the write.
func mergeNote(treeHash, existing string, run models.ValidationRun) (string, error) {
	note := models.HistoryNote{TreeHash: treeHash}
	if existing != "" {
		if parsed, err := decodeNote(existing); err == nil {
			note = parsed
		}
	}
	note.TreeHash = treeHash
	note.Runs = append(note.Runs, run)
	return encodeNote(note)
}

func encodeNote(note models.HistoryNote) (string, error) {
	b, err := json.Marshal(note)
	if err != nil {
		return "", fmt.Errorf("encode history note: %w", err)
	}
	return string(b), nil
}

func decodeNote(content string) (models.HistoryNote, error) {
	var note models.HistoryNote
	if err := json.Unmarshal([]byte(content), &note); err != nil {
		return models.HistoryNote{}, fmt.Errorf("decode history note: %w", err)
	}
	return note, nil
}
