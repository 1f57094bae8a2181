package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"ember/internal/orchestrator"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [path]",
	Short: "Rebuild on file changes",
	Long:  "Watch the project tree and run an incremental build cycle whenever tracked files change.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  watchExecution,
}

func init() {
	addOrchestratorFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 250*time.Millisecond, "settle time before a rebuild starts")
}

func watchExecution(cmd *cobra.Command, args []string) error {
	if err := configureColor(cmd); err != nil {
		return err
	}
	opts, err := orchestratorOptions(cmd, args)
	if err != nil {
		return err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}
	defer orch.Close()

	runCycle := func() {
		res, err := orch.Cycle(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "build cycle failed: %v\n", err)
			return
		}
		if res.NoOp {
			return
		}
		renderDiagnostics(os.Stdout, res.Diagnostics)
		if showTimings, _ := cmd.Flags().GetBool("timings"); showTimings && res.Timer != nil {
			fmt.Fprint(os.Stderr, res.Timer.Summary())
		}
	}
	runCycle()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	addTree := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
	}
	if err := addTree(orch.BasePath()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", orch.BasePath(), err)
	}

	// Debounce timer: armed on the first write, drained on fire.
	settle := time.NewTimer(debounce)
	if !settle.Stop() {
		<-settle.C
	}

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				// New directories must be added while they are still
				// fresh, or writes inside them go unseen.
				_ = addTree(ev.Name)
				continue
			}
			orch.Host().RecordWrite(ev.Name)
			settle.Reset(debounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", watchErr)

		case <-settle.C:
			runCycle()
		}
	}
}
