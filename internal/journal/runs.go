package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Entry is one journaled run row.
type Entry struct {
	ID                 string
	TreeHash           string
	StartedAt          time.Time
	DurationMS         int64
	Passed             bool
	Branch             string
	HeadCommit         string
	UncommittedChanges bool
	FailedStep         string
	Summary            string
}

// Record inserts a run into the journal.
func (db *DB) Record(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("journal entry has no id")
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, tree_hash, started_at, duration_ms, passed,
			branch, head_commit, uncommitted_changes, failed_step, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TreeHash, formatTime(e.StartedAt), e.DurationMS, boolToInt(e.Passed),
		e.Branch, e.HeadCommit, boolToInt(e.UncommittedChanges), e.FailedStep, e.Summary)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecordRun journals a completed run described by its history record
// and final result.
func (db *DB) RecordRun(run models.ValidationRun, result *models.ValidationResult, treeHash string) error {
	e := Entry{
		ID:                 run.ID,
		TreeHash:           treeHash,
		DurationMS:         run.DurationMS,
		Passed:             run.Passed,
		Branch:             run.Branch,
		HeadCommit:         run.HeadCommit,
		UncommittedChanges: run.UncommittedChanges,
	}
	if t, err := time.Parse(time.RFC3339, run.Timestamp); err == nil {
		e.StartedAt = t
	} else {
		e.StartedAt = time.Now()
	}
	if result != nil {
		e.FailedStep = result.FailedStep
		e.Summary = result.Summary
	}
	return db.Record(e)
}

// List returns the most recent runs, newest first. A limit of 0 means
// no limit.
func (db *DB) List(limit int) ([]Entry, error) {
	query := `
		SELECT id, tree_hash, started_at, duration_ms, passed,
			branch, head_commit, uncommitted_changes, failed_step, summary
		FROM runs ORDER BY started_at DESC, id DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return scanEntries(rows)
}

// ListByTreeHash returns runs recorded for a tree hash, newest first.
func (db *DB) ListByTreeHash(treeHash string) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT id, tree_hash, started_at, duration_ms, passed,
			branch, head_commit, uncommitted_changes, failed_step, summary
		FROM runs WHERE tree_hash = ? ORDER BY started_at DESC, id DESC
	`, treeHash)
	if err != nil {
		return nil, fmt.Errorf("list runs for tree: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt string
		var passed, uncommitted int
		var branch, headCommit, failedStep, summary sql.NullString
		if err := rows.Scan(&e.ID, &e.TreeHash, &startedAt, &e.DurationMS, &passed,
			&branch, &headCommit, &uncommitted, &failedStep, &summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := parseTime(startedAt); err == nil {
			e.StartedAt = t
		}
		e.Passed = passed != 0
		e.UncommittedChanges = uncommitted != 0
		e.Branch = branch.String
		e.HeadCommit = headCommit.String
		e.FailedStep = failedStep.String
		e.Summary = summary.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes runs older than the given duration. Returns the number
// of runs deleted.
func (db *DB) Prune(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// Clear deletes every journaled run.
func (db *DB) Clear() (int64, error) {
	result, err := db.Exec("DELETE FROM runs")
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
