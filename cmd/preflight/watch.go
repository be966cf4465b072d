package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run validation whenever tracked files change",
	Long: `Watch monitors the repository and re-runs the pipeline after changes,
debounced so a burst of writes triggers one run. The tree-hash cache
makes spurious re-triggers (touched but unchanged files) effectively
free: an unchanged tree replays its recorded result.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a change triggers a run")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := checkGitCLI(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rc, err := newRunContext(ctx)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, rc.repoRoot); err != nil {
		return err
	}

	color.Cyan("watching %s (debounce %s), ctrl-c to stop", rc.repoRoot, watchDebounce)
	runOnce(ctx, rc)

	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredPath(rc.repoRoot, event.Name) {
				continue
			}
			// New directories need watches of their own.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addWatchDirs(watcher, event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			// Re-resolve the context so the run sees the current tree hash.
			fresh, err := newRunContext(ctx)
			if err != nil {
				color.Yellow("skipping run: %v", err)
				continue
			}
			runOnce(ctx, fresh)
			color.Cyan("watching for changes...")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			color.Yellow("watch error: %v", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// runOnce runs the pipeline with cache lookup, reporting but never
// propagating failures so watching continues.
func runOnce(ctx context.Context, rc *runContext) {
	cached, err := rc.lookup.FindCachedRun(ctx, rc.treeHash)
	if err == nil && cached != nil {
		printCachedResult(cached)
		return
	}
	if _, err := rc.executePipeline(ctx, pipelineOptions{}); err != nil {
		color.Yellow("run failed: %v", err)
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredPath(root, path) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignoredPath filters repository internals and preflight's own output,
// which would otherwise re-trigger every run.
func ignoredPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	first := strings.Split(filepath.ToSlash(rel), "/")[0]
	return first == ".git" || first == ".preflight"
}
