package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ember/internal/orchestrator"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Run one build cycle",
	Long:  "Run a single incremental build cycle using ember.toml as the project definition.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func init() {
	addOrchestratorFlags(buildCmd)
}

func buildExecution(cmd *cobra.Command, args []string) error {
	if err := configureColor(cmd); err != nil {
		return err
	}
	opts, err := orchestratorOptions(cmd, args)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}
	defer orch.Close()

	res, err := orch.Cycle(cmd.Context())
	if res != nil {
		renderDiagnostics(os.Stdout, res.Diagnostics)
		if showTimings, _ := cmd.Flags().GetBool("timings"); showTimings && res.Timer != nil {
			fmt.Fprint(os.Stderr, res.Timer.Summary())
		}
	}
	if err != nil {
		return err
	}
	if res.HasErrors() {
		return fmt.Errorf("build failed")
	}
	return nil
}
