package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ember/internal/compilerapi"
	"ember/internal/host"
	"ember/internal/worker"
)

// workerCmd is the process entry point the orchestrator spawns for
// out-of-process type checking. Hidden: never invoked by hand.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run as a type-check worker process",
	Hidden: true,
	// Manifest-supplied worker args are opaque to the CLI.
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               workerExecution,
}

func init() {
	workerCmd.Flags().Bool("listen", false, "start listening for driver messages immediately")
}

func workerExecution(cmd *cobra.Command, args []string) error {
	listen, err := cmd.Flags().GetBool("listen")
	if err != nil {
		return err
	}
	if !listen {
		return fmt.Errorf("worker must be started with --listen")
	}

	compiler, err := compilerapi.Registered()
	if err != nil {
		return err
	}

	return worker.Serve(cmd.Context(), worker.ServeOptions{
		Compiler: compiler,
		NewHost: func(basePath string, replacements map[string]string) compilerapi.FileHost {
			inner := host.NewContentHost(basePath)
			if len(replacements) == 0 {
				return inner
			}
			return host.NewReplacingHost(inner, replacements)
		},
		In:  os.Stdin,
		Out: os.Stdout,
	})
}
