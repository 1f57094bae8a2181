package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"ember/internal/compilerapi"
	"ember/internal/diag"
	"ember/internal/trace"
)

// internalError wraps an unclassified compiler failure together with
// the stack it surfaced on. Unlike a syntax error it poisons the
// current program handle.
type internalError struct {
	cause any
	stack []byte
}

func (e *internalError) Error() string {
	return fmt.Sprintf("internal compiler error: %v\n%s", e.cause, e.stack)
}

// callCompiler runs fn, converting panics from the compiler into
// errors: a SyntaxError panic stays a SyntaxError, anything else
// becomes an internalError carrying the stack.
func callCompiler(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*compilerapi.SyntaxError); ok {
				err = se
				return
			}
			err = &internalError{cause: r, stack: debug.Stack()}
		}
	}()
	return fn()
}

// classifyCompilerError folds a compiler failure into the bag. An
// unclassified failure invalidates the program handle: its internal
// state is in an unknown condition and must not be reused.
func (o *Orchestrator) classifyCompilerError(err error, bag *diag.Bag) {
	var se *compilerapi.SyntaxError
	if errors.As(err, &se) {
		// Expected user error: message only, no stack.
		bag.Error(diag.CompSyntaxError, diag.PhaseFatal, se.Msg)
		return
	}
	bag.Error(diag.CompInternalError, diag.PhaseFatal, err.Error())
	o.program = nil
	o.tracer.Logf(trace.LevelError, "discarding program state after internal compiler error")
}

// createOrUpdateProgram replaces the program handle, passing the
// previous one to the compiler as an incremental-reuse hint.
func (o *Orchestrator) createOrUpdateProgram(ctx context.Context, rootNames []string, bag *diag.Bag) error {
	previous := o.program

	var prog compilerapi.Program
	err := callCompiler(func() error {
		p, err := o.compiler.CreateProgram(rootNames, o.cfg.Compiler, o.fileHost, previous)
		prog = p
		return err
	})
	if err != nil {
		o.classifyCompilerError(err, bag)
		return err
	}

	// Invalidate cached content for files present now but absent
	// before: a stale existence probe from an earlier cycle must not
	// shadow a newly-appearing file.
	known := make(map[string]struct{})
	if previous != nil {
		for _, f := range previous.SourceFiles() {
			known[f] = struct{}{}
		}
	}
	for _, f := range prog.SourceFiles() {
		if _, ok := known[f]; !ok {
			o.fileHost.Invalidate(f)
		}
	}

	o.program = prog

	// The one suspension point of the driver: asynchronous structural
	// loading must finish before any diagnostics are gathered.
	if o.cfg.Compiler.DeferredStructure {
		if err := prog.WaitStructure(ctx); err != nil {
			bag.Error(diag.StructLoadFailed, diag.PhaseStructural,
				fmt.Sprintf("structural loading failed: %v", err))
			return err
		}
	}

	o.resolveEntryPoint(prog, bag)
	return nil
}

// resolveEntryPoint statically resolves the bootstrap entry point
// from the configured main file when no explicit entry point is set.
// Failure is non-fatal and downgrades lazy-route discovery to off.
func (o *Orchestrator) resolveEntryPoint(prog compilerapi.Program, bag *diag.Bag) {
	if o.entryResolved || o.cfg.MainPath == "" {
		return
	}
	entry, err := prog.ResolveEntryPoint(o.cfg.MainPath)
	if err != nil {
		o.routeDiscovery = false
		o.entryResolved = true
		bag.Warn(diag.RouteDiscoveryDisabled, diag.PhaseStructural,
			fmt.Sprintf("could not resolve entry point from %s: %v; lazy-route discovery disabled",
				o.cfg.MainPath, err))
		return
	}
	o.entryPoint = entry
	o.entryResolved = true
}
