package history

import (
	"context"
	"sort"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Lookup answers "has this exact tree state already been validated?"
// against the history store. It only reads; it never mutates notes.
type Lookup struct {
	store *Store
}

// NewLookup creates a cache lookup over store.
func NewLookup(store *Store) *Lookup {
	return &Lookup{store: store}
}

// FindCachedRun returns the most recent recorded run whose submodule
// state exactly matches current, or nil on a miss. A miss is a normal
// outcome signaling "run validation fresh", never an error.
func (l *Lookup) FindCachedRun(ctx context.Context, current models.TreeHash) (*models.ValidationRun, error) {
	note, err := l.store.ReadHistory(ctx, current.Hash)
	if err != nil {
		return nil, err
	}
	if note == nil || len(note.Runs) == 0 {
		return nil, nil
	}

	// Newest runs live at the highest indexes; scan backwards so the
	// first submodule-parity match is the most recent one.
	for i := len(note.Runs) - 1; i >= 0; i-- {
		run := note.Runs[i]
		if SubmodulesEqual(run.SubmoduleHashes, current.SubmoduleHashes) {
			return &run, nil
		}
	}
	return nil, nil
}

// SubmodulesEqual implements the cache parity rule: both absent is a
// match, exactly one absent is not, and both present match only when the
// sorted key sets are identical and every path maps to the same hash.
// A stale submodule pointer must never produce a false cache hit even
// when the parent tree hash coincides.
func SubmodulesEqual(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(a) != len(b) {
		return false
	}

	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok || a[k] != bv {
			return false
		}
	}
	return true
}
