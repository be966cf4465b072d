package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func entryAt(id string, treeHash string, at time.Time, passed bool) Entry {
	return Entry{
		ID:        id,
		TreeHash:  treeHash,
		StartedAt: at,
		Passed:    passed,
		Branch:    "main",
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.Record(Entry{
		ID:                 "run-1",
		TreeHash:           "abc123",
		StartedAt:          now,
		DurationMS:         1500,
		Passed:             false,
		Branch:             "main",
		HeadCommit:         "deadbeef",
		UncommittedChanges: true,
		FailedStep:         "lint",
		Summary:            "phase \"static\" failed at step \"lint\"",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := db.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "run-1" || e.TreeHash != "abc123" || e.Passed || !e.UncommittedChanges {
		t.Errorf("entry = %+v", e)
	}
	if e.FailedStep != "lint" {
		t.Errorf("FailedStep = %q", e.FailedStep)
	}
	if e.DurationMS != 1500 {
		t.Errorf("DurationMS = %d", e.DurationMS)
	}
}

func TestRecordRequiresID(t *testing.T) {
	db := openTestDB(t)
	if err := db.Record(Entry{TreeHash: "abc"}); err == nil {
		t.Fatal("Record accepted entry without id")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		if err := db.Record(entryAt(id, "hash", base.Add(time.Duration(i)*time.Minute), true)); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	entries, err := db.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "new" || entries[1].ID != "mid" {
		t.Errorf("order = [%s %s], want [new mid]", entries[0].ID, entries[1].ID)
	}
}

func TestListByTreeHash(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.Record(entryAt("a", "hash-one", now, true))
	db.Record(entryAt("b", "hash-two", now.Add(time.Second), false))
	db.Record(entryAt("c", "hash-one", now.Add(2*time.Second), false))

	entries, err := db.ListByTreeHash("hash-one")
	if err != nil {
		t.Fatalf("ListByTreeHash: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "c" || entries[1].ID != "a" {
		t.Errorf("order = [%s %s], want [c a]", entries[0].ID, entries[1].ID)
	}
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	db.Record(entryAt("ancient", "h", time.Now().Add(-48*time.Hour), true))
	db.Record(entryAt("recent", "h", time.Now(), true))

	n, err := db.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	entries, _ := db.List(0)
	if len(entries) != 1 || entries[0].ID != "recent" {
		t.Errorf("remaining = %+v", entries)
	}
}

func TestClear(t *testing.T) {
	db := openTestDB(t)
	db.Record(entryAt("a", "h", time.Now(), true))
	db.Record(entryAt("b", "h", time.Now(), false))

	n, err := db.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}
	entries, _ := db.List(0)
	if len(entries) != 0 {
		t.Errorf("entries remain after Clear: %+v", entries)
	}
}

func TestProjectDBPath(t *testing.T) {
	got := ProjectDBPath("/repo")
	want := filepath.Join("/repo", ".preflight", "journal.db")
	if got != want {
		t.Errorf("ProjectDBPath = %q, want %q", got, want)
	}
}
