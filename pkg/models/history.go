package models

// TreeHash is a deterministic content digest of the working tree.
// Identical file content and identical submodule commit states always
// produce the same hash; there is no dependency on wall-clock time or
// commit metadata. Computed fresh per invocation, never persisted on
// its own.
type TreeHash struct {
	// Hash is the root working-tree digest (hex).
	Hash string `json:"hash"`
	// SubmoduleHashes maps submodule path to its commit hash. Nil when
	// the repository has no submodules.
	SubmoduleHashes map[string]string `json:"submodule_hashes,omitempty"`
}

// ValidationRun is one history record: a completed validation plus the
// repository state it ran against.
type ValidationRun struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`
	// Timestamp is the run start time in RFC 3339 format.
	Timestamp string `json:"timestamp"`
	// DurationMS is the total run duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Passed mirrors Result.Passed for cheap scanning.
	Passed bool `json:"passed"`
	// Branch is the branch that was checked out.
	Branch string `json:"branch"`
	// HeadCommit is the HEAD commit at run time.
	HeadCommit string `json:"head_commit"`
	// UncommittedChanges is true when the working tree was dirty.
	UncommittedChanges bool `json:"uncommitted_changes"`
	// SubmoduleHashes is the submodule state at run time.
	SubmoduleHashes map[string]string `json:"submodule_hashes,omitempty"`
	// Result is the full structured outcome.
	Result ValidationResult `json:"result"`
}

// HistoryNote is the unit of notes storage: all runs recorded for one
// tree hash, oldest first. Mutated only by appending runs; "most recent"
// means highest index.
type HistoryNote struct {
	// TreeHash is the root tree hash this note is keyed by.
	TreeHash string `json:"tree_hash"`
	// Runs holds the recorded runs in append order.
	Runs []ValidationRun `json:"runs"`
}
