package history

import (
	"context"
	"testing"

	"github.com/cormorantdev/preflight/pkg/models"
)

func runWithSubs(id string, subs map[string]string) models.ValidationRun {
	r := testRun(id)
	r.SubmoduleHashes = subs
	return r
}

func seedStore(t *testing.T, runs ...models.ValidationRun) *Store {
	t.Helper()
	s := NewStore(newFakeNotes(), "")
	for _, r := range runs {
		if err := s.AppendRun(context.Background(), testHash, r); err != nil {
			t.Fatalf("seed AppendRun: %v", err)
		}
	}
	return s
}

func TestFindCachedRunMissOnEmptyHistory(t *testing.T) {
	l := NewLookup(NewStore(newFakeNotes(), ""))
	run, err := l.FindCachedRun(context.Background(), models.TreeHash{Hash: testHash})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run != nil {
		t.Errorf("run = %+v, want nil miss", run)
	}
}

func TestFindCachedRunRequiresExactSubmoduleParity(t *testing.T) {
	s := seedStore(t, runWithSubs("recorded", map[string]string{"lib": "aaa"}))
	l := NewLookup(s)
	ctx := context.Background()

	// Same submodule path at a different commit: never a hit, even
	// though the parent tree hash is identical.
	run, err := l.FindCachedRun(ctx, models.TreeHash{
		Hash:            testHash,
		SubmoduleHashes: map[string]string{"lib": "bbb"},
	})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run != nil {
		t.Error("cache hit despite stale submodule pointer")
	}

	// Recorded with submodules, current without: also a miss.
	run, err = l.FindCachedRun(ctx, models.TreeHash{Hash: testHash})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run != nil {
		t.Error("cache hit despite missing submodule state")
	}

	// Exact parity: hit.
	run, err = l.FindCachedRun(ctx, models.TreeHash{
		Hash:            testHash,
		SubmoduleHashes: map[string]string{"lib": "aaa"},
	})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run == nil || run.ID != "recorded" {
		t.Errorf("run = %+v, want recorded", run)
	}
}

func TestFindCachedRunPrefersMostRecentMatch(t *testing.T) {
	subs := map[string]string{"lib": "aaa"}
	s := seedStore(t,
		runWithSubs("old-match", subs),
		runWithSubs("non-match", map[string]string{"lib": "zzz"}),
		runWithSubs("new-match", subs),
	)
	l := NewLookup(s)

	run, err := l.FindCachedRun(context.Background(), models.TreeHash{
		Hash:            testHash,
		SubmoduleHashes: subs,
	})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run == nil || run.ID != "new-match" {
		t.Errorf("run = %+v, want new-match (most recent first)", run)
	}
}

func TestFindCachedRunNoSubmodulesBothSides(t *testing.T) {
	s := seedStore(t, runWithSubs("plain", nil))
	l := NewLookup(s)

	run, err := l.FindCachedRun(context.Background(), models.TreeHash{Hash: testHash})
	if err != nil {
		t.Fatalf("FindCachedRun: %v", err)
	}
	if run == nil || run.ID != "plain" {
		t.Errorf("run = %+v, want plain (both-absent is a match)", run)
	}
}

func TestSubmodulesEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b map[string]string
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs empty", nil, map[string]string{}, true},
		{"one nil", nil, map[string]string{"a": "1"}, false},
		{"equal single", map[string]string{"a": "1"}, map[string]string{"a": "1"}, true},
		{"different value", map[string]string{"a": "1"}, map[string]string{"a": "2"}, false},
		{"different key", map[string]string{"a": "1"}, map[string]string{"b": "1"}, false},
		{"subset", map[string]string{"a": "1"}, map[string]string{"a": "1", "b": "2"}, false},
		{
			"equal multi",
			map[string]string{"a": "1", "b": "2"},
			map[string]string{"b": "2", "a": "1"},
			true,
		},
	}
	for _, tc := range cases {
		if got := SubmodulesEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: SubmodulesEqual = %v, want %v", tc.name, got, tc.want)
		}
	}
}
