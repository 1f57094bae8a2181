package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ember/internal/compilerapi"
	"ember/internal/config"
	"ember/internal/orchestrator"
	"ember/internal/routes"
	"ember/internal/trace"
)

// orchestratorOptions assembles orchestrator.Options from the command
// flags and the optional positional project path.
func orchestratorOptions(cmd *cobra.Command, args []string) (orchestrator.Options, error) {
	var opts orchestrator.Options

	startDir := "."
	if len(args) == 1 {
		startDir = args[0]
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return opts, err
	}
	if configPath == "" {
		found, ok, err := config.FindManifest(startDir)
		if err != nil {
			return opts, err
		}
		if !ok {
			return opts, fmt.Errorf("no %s found in %s or any parent", config.ManifestName, startDir)
		}
		configPath = found
	}

	compiler, err := compilerapi.Registered()
	if err != nil {
		return opts, fmt.Errorf("%w: link a front end or use this package as a library", err)
	}

	tracer, err := tracerFromFlags(cmd)
	if err != nil {
		return opts, err
	}

	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return opts, err
	}

	ov, err := overridesFromFlags(cmd)
	if err != nil {
		return opts, err
	}

	opts = orchestrator.Options{
		ConfigPath:     configPath,
		Overrides:      ov,
		Compiler:       compiler,
		Tracer:         tracer,
		MaxDiagnostics: maxDiags,
	}
	return opts, nil
}

func tracerFromFlags(cmd *cobra.Command) (trace.Tracer, error) {
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}
	levelValue, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	level, err := trace.ParseLevel(levelValue)
	if err != nil {
		return nil, err
	}
	if quiet && level > trace.LevelError {
		level = trace.LevelError
	}
	return trace.NewStreamTracer(os.Stderr, level), nil
}

func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var ov config.Overrides
	flags := cmd.Flags()

	var err error
	if ov.EntryPoint, err = flags.GetString("entry"); err != nil {
		return ov, err
	}
	if ov.MainPath, err = flags.GetString("main"); err != nil {
		return ov, err
	}
	if ov.Locale, err = flags.GetString("locale"); err != nil {
		return ov, err
	}
	if ov.MissingTranslation, err = flags.GetString("missing-translation"); err != nil {
		return ov, err
	}

	if flags.Changed("no-codegen") {
		v, err := flags.GetBool("no-codegen")
		if err != nil {
			return ov, err
		}
		noCodegen := v
		ov.NoCodegen = &noCodegen
	}
	if flags.Changed("no-worker") {
		v, err := flags.GetBool("no-worker")
		if err != nil {
			return ov, err
		}
		enabled := !v
		ov.Worker = &enabled
	}

	specs, err := flags.GetStringArray("lazy-route")
	if err != nil {
		return ov, err
	}
	if len(specs) > 0 {
		ov.ExtraRoutes = make(map[string]string, len(specs))
		for _, spec := range specs {
			route, err := routes.ParseAddition(spec)
			if err != nil {
				return ov, fmt.Errorf("--lazy-route: %w", err)
			}
			name := route.ModulePath
			if route.ExportName != "" {
				name += "#" + route.ExportName
			}
			ov.ExtraRoutes[name] = route.TargetPath
		}
	}
	return ov, nil
}

// addOrchestratorFlags registers the flags shared by build and watch.
func addOrchestratorFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to ember.toml (default: walk up from the project path)")
	cmd.Flags().String("entry", "", "explicit entry point (overrides the manifest)")
	cmd.Flags().String("main", "", "main file to resolve the entry point from")
	cmd.Flags().Bool("no-codegen", false, "skip output generation")
	cmd.Flags().Bool("no-worker", false, "disable the type-check worker process")
	cmd.Flags().String("locale", "", "locale id for i18n")
	cmd.Flags().String("missing-translation", "", "missing-translation policy (error|warning|ignore)")
	cmd.Flags().StringArray("lazy-route", nil, "extra lazy route module[#export]=path (repeatable)")
}
