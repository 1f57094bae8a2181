package orchestrator

import (
	"context"
	"fmt"

	"ember/internal/diag"
	"ember/internal/observ"
	"ember/internal/trace"
	"ember/internal/worker"
)

// Result is the outcome of one build cycle.
type Result struct {
	// NoOp is true when nothing relevant changed and the cycle
	// short-circuited without touching any state.
	NoOp        bool
	Diagnostics []diag.Diagnostic
	// EmitSkipped marks stale-output mode: no output was produced
	// this cycle, and file queries fall back to prior artifacts.
	EmitSkipped bool
	Timer       *observ.Timer
}

// HasErrors reports whether the cycle produced error diagnostics.
func (r *Result) HasErrors() bool {
	for i := range r.Diagnostics {
		if r.Diagnostics[i].Severity >= diag.SevError {
			return true
		}
	}
	return false
}

// Cycle runs one build cycle to completion. Concurrent invocation
// while a cycle is in flight is a contract violation and returns
// ErrCycleInFlight.
func (o *Orchestrator) Cycle(ctx context.Context) (*Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer o.inFlight.Store(false)

	timer := observ.NewTimer()
	changed := o.tracker.ChangedRelevant()

	// A rebuild with nothing relevant changed is a no-op: no program
	// update, no worker message, no diagnostics.
	if !o.firstRun && len(changed) == 0 {
		return &Result{NoOp: true, EmitSkipped: o.lastEmitSkipped, Timer: timer}, nil
	}

	bag := diag.NewBag(o.maxDiags)
	o.tracer.Logf(trace.LevelInfo, "build cycle start: %d changed files, firstRun=%v",
		len(changed), o.firstRun)

	o.ensureWorker(bag)
	roots := o.rootNames()

	// Hand the worker the delta before the main-thread rebuild so its
	// semantic pass overlaps ours. Fire and forget.
	if !o.firstRun && o.channel != nil && o.channel.Active() {
		if err := o.channel.SendUpdate(roots, changed); err != nil {
			o.tracer.Logf(trace.LevelWarn, "failed to notify worker: %v", err)
		}
	}

	idx := timer.Begin("program")
	progErr := o.createOrUpdateProgram(ctx, roots, bag)
	timer.End(idx, "")

	if progErr == nil {
		if err := o.discoverRoutes(timer, bag); err != nil {
			// Route conflicts abort the whole cycle: downstream
			// consumers cannot disambiguate at request time.
			o.lastEmitSkipped = true
			bag.Sort()
			return &Result{Diagnostics: bagToSlice(bag), EmitSkipped: true, Timer: timer}, err
		}

		idx = timer.Begin("diagnostics")
		o.gatherDiagnostics(bag)
		timer.End(idx, fmt.Sprintf("%d findings", bag.Len()))
	}

	idx = timer.Begin("emit")
	skipped := o.emitOutputs(ctx, changed, bag)
	timer.End(idx, "")

	o.lastEmitSkipped = skipped
	if !bag.HasErrors() && !skipped {
		// Clean build: the accumulated changes are finally consumed.
		o.tracker.Reset()
		o.firstRun = false
	}

	bag.Sort()
	return &Result{Diagnostics: bagToSlice(bag), EmitSkipped: skipped, Timer: timer}, nil
}

// ensureWorker spawns and initializes the worker on the first cycle
// that needs it. Spawn failure is a degradation, not a build failure.
func (o *Orchestrator) ensureWorker(bag *diag.Bag) {
	if o.channel == nil || o.channel.State() != worker.StateIdle {
		return
	}
	if err := o.channel.Start(o.cfg.WorkerArgs); err != nil {
		bag.Warn(diag.WorkSpawnFailed, diag.PhaseSemantic,
			fmt.Sprintf("failed to start type-check worker: %v; using main-thread checking", err))
		o.channel = nil
		return
	}
	if err := o.channel.SendInit(worker.InitMessage{
		Options:          o.cfg.Compiler,
		BasePath:         o.cfg.BasePath,
		Mode:             o.cfg.Compiler.Mode,
		RootNames:        o.cfg.RootNames,
		PathReplacements: o.cfg.PathReplacements,
	}); err != nil {
		bag.Warn(diag.WorkSpawnFailed, diag.PhaseSemantic,
			fmt.Sprintf("failed to initialize type-check worker: %v", err))
	}
}

// discoverRoutes merges this cycle's lazy-route discovery, plus the
// caller-supplied additions, into the registry.
func (o *Orchestrator) discoverRoutes(timer *observ.Timer, bag *diag.Bag) error {
	if !o.routeDiscovery || o.entryPoint == "" || o.program == nil {
		return nil
	}
	idx := timer.Begin("routes")
	fresh := o.program.LazyRoutes(o.entryPoint)
	fresh = append(fresh, o.cfg.ExtraRoutes...)
	warnings, err := o.registry.MergeDiscovered(fresh)
	timer.End(idx, fmt.Sprintf("%d registered", o.registry.Len()))
	if err != nil {
		return err
	}
	for _, w := range warnings {
		bag.Add(w)
	}
	return nil
}
