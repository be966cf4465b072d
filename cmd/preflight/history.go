package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cormorantdev/preflight/internal/git"
	"github.com/cormorantdev/preflight/internal/journal"
	"github.com/cormorantdev/preflight/internal/notes"
)

var (
	historyLimit     int
	historyJSON      bool
	pruneOlderThan   time.Duration
	pruneIncludeRefs bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded validation runs",
	Long: `History lists runs from the local journal, newest first. The journal
is an index over the git notes history; notes remain the durable record
and survive journal pruning.`,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries, optionally the notes history too",
	Long: `Prune removes journal entries older than --older-than. With --notes it
also deletes every notes ref under the reserved preflight namespace;
refs outside the namespace are never touched.`,
	RunE: runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Emit JSON instead of a table")
	historyPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "Age threshold for journal entries")
	historyPruneCmd.Flags().BoolVar(&pruneIncludeRefs, "notes", false, "Also delete the preflight notes refs")
	historyCmd.AddCommand(historyPruneCmd)
}

func openJournal() (*journal.DB, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("get working directory: %w", err)
	}
	repoRoot, err := git.NewRunner(cwd).RepoRoot()
	if err != nil {
		return nil, "", fmt.Errorf("not inside a git repository: %w", err)
	}
	db, err := journal.OpenProject(repoRoot)
	if err != nil {
		return nil, "", err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, repoRoot, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, _, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.List(historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, e := range entries {
		verdict := color.GreenString("pass")
		if !e.Passed {
			verdict = color.RedString("fail")
		}
		dirty := ""
		if e.UncommittedChanges {
			dirty = " +dirty"
		}
		fmt.Printf("%s  %s  %-4s  %s@%s%s  %.1fs\n",
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			shortHash(e.TreeHash),
			verdict,
			e.Branch, shortHash(e.HeadCommit), dirty,
			float64(e.DurationMS)/1000)
		if !e.Passed && e.FailedStep != "" {
			fmt.Printf("    failed at %q\n", e.FailedStep)
		}
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	db, repoRoot, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Prune(pruneOlderThan)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d journal entries\n", n)

	if !pruneIncludeRefs {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store := notes.NewStore(repoRoot)
	if err := store.RemoveNotesRefs(ctx, notes.Namespace); err != nil {
		return fmt.Errorf("remove notes refs: %w", err)
	}
	fmt.Println("removed preflight notes refs")
	return nil
}
