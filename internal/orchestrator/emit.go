package orchestrator

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"ember/internal/compilerapi"
	"ember/internal/diag"
	"ember/internal/host"
)

// wholeEmitThreshold is the changed-file count above which a single
// whole-program emit beats per-file emits.
const wholeEmitThreshold = 20

// gatherDiagnostics collects the cycle's diagnostics phase by phase.
// Collection never short-circuits: every phase runs even when an
// earlier one already found errors.
func (o *Orchestrator) gatherDiagnostics(bag *diag.Bag) {
	prog := o.program
	if prog == nil {
		return
	}

	if o.channel != nil && o.channel.FallbackRequired() && !o.crashReported {
		o.crashReported = true
		bag.Warn(diag.WorkCrashed, diag.PhaseSemantic,
			"type-check worker crashed; semantic checking moved to the main thread for the rest of the run")
	}

	// Compiler configuration cannot change across incremental
	// rebuilds, so option diagnostics are a first-run concern only.
	if o.firstRun {
		appendAll(bag, prog.OptionDiagnostics())
	}
	if o.hasStructuralPhase() {
		appendAll(bag, prog.StructuralDiagnostics())
	}
	appendAll(bag, prog.SyntacticDiagnostics())

	// Semantic findings are trusted to the worker's independent pass
	// when it covers this cycle; its results arrive over the logging
	// channel, not through this pipeline.
	workerCovers := !o.firstRun && o.channel != nil && o.channel.Active()
	if !workerCovers {
		appendAll(bag, prog.SemanticDiagnostics())
	}
}

// hasStructuralPhase reports whether the active mode runs a
// structural-loading phase each cycle.
func (o *Orchestrator) hasStructuralPhase() bool {
	return o.cfg.Compiler.Mode == compilerapi.ModeAOT || o.cfg.Compiler.DeferredStructure
}

func appendAll(bag *diag.Bag, items []diag.Diagnostic) {
	for _, d := range items {
		bag.Add(d)
	}
}

// emitOutputs runs the emit phase and reports whether output is stale
// (nothing was produced this cycle).
func (o *Orchestrator) emitOutputs(ctx context.Context, changed []string, bag *diag.Bag) (skipped bool) {
	prog := o.program
	if prog == nil || bag.HasErrors() || o.cfg.Compiler.NoCodegen {
		return true
	}

	// First run and bulk changes get one whole-program emit;
	// otherwise emit per file so cost tracks the size of the edit,
	// not the size of the project.
	if o.firstRun || len(changed) > wholeEmitThreshold {
		res, err := o.safeEmit(nil)
		if err != nil {
			o.classifyCompilerError(err, bag)
			return true
		}
		o.absorbEmit(res, bag)
		return res.Skipped
	}

	results := make([]compilerapi.EmitResult, len(changed))
	errs := make([]error, len(changed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(changed)))
	for i, path := range changed {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				errs[i] = gctx.Err()
				return nil
			default:
			}
			results[i], errs[i] = o.safeEmit([]string{path})
			return nil
		})
	}
	_ = g.Wait()

	for i := range changed {
		if errs[i] != nil {
			o.classifyCompilerError(errs[i], bag)
			skipped = true
			continue
		}
		o.absorbEmit(results[i], bag)
		if results[i].Skipped {
			skipped = true
		}
	}
	return skipped
}

// safeEmit shields the driver from compiler panics during emit.
func (o *Orchestrator) safeEmit(files []string) (compilerapi.EmitResult, error) {
	var res compilerapi.EmitResult
	err := callCompiler(func() error {
		r, err := o.program.Emit(files)
		res = r
		return err
	})
	return res, err
}

// absorbEmit folds one emit result into the cycle: diagnostics into
// the bag, artifacts into the store.
func (o *Orchestrator) absorbEmit(res compilerapi.EmitResult, bag *diag.Bag) {
	appendAll(bag, res.Diagnostics)
	for _, f := range res.Files {
		err := o.artifacts.Put(host.Artifact{
			Path:      f.Path,
			Text:      f.Text,
			SourceMap: f.SourceMap,
		})
		if err != nil {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.EmitFileFailed,
				Phase:    diag.PhaseEmit,
				Message:  err.Error(),
				File:     f.Path,
			})
		}
	}
}
