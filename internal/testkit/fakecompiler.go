// Package testkit provides an in-memory compiler front end for
// exercising the orchestrator without a real language implementation.
package testkit

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"ember/internal/compilerapi"
	"ember/internal/diag"
)

// FakeCompiler is a scriptable compilerapi.Compiler. Zero value is a
// compiler that accepts everything and emits one artifact per source.
type FakeCompiler struct {
	mu sync.Mutex

	// Scripted behavior.
	CreateErr   error
	CreatePanic any
	EmitErr     error
	EmitPanic   any
	EmitSkipped bool

	OptionDiags     []diag.Diagnostic
	StructuralDiags []diag.Diagnostic
	SyntacticDiags  []diag.Diagnostic
	SemanticDiags   []diag.Diagnostic

	Routes     []compilerapi.Route
	EntryPoint string
	EntryErr   error

	// CreateHook, when set, runs inside every CreateProgram call.
	// Tests use it to hold a build cycle open.
	CreateHook func()

	ImportsByFile   map[string][]string
	ResourcesByFile map[string][]string
	// ExtraSources are folded into every program's source list on top
	// of the root names.
	ExtraSources []string

	// Observations.
	CreateCalls   int
	LastRoots     []string
	LastPrevious  compilerapi.Program
	EmitCalls     [][]string
	SemanticCalls int
}

// CreateProgram implements compilerapi.Compiler.
func (c *FakeCompiler) CreateProgram(rootNames []string, opts compilerapi.Options, host compilerapi.FileHost, previous compilerapi.Program) (compilerapi.Program, error) {
	c.mu.Lock()
	c.CreateCalls++
	c.LastRoots = append([]string(nil), rootNames...)
	c.LastPrevious = previous
	c.mu.Unlock()

	if c.CreateHook != nil {
		c.CreateHook()
	}
	if c.CreatePanic != nil {
		panic(c.CreatePanic)
	}
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	sources := append([]string(nil), rootNames...)
	sources = append(sources, c.ExtraSources...)
	return &fakeProgram{compiler: c, sources: sources}, nil
}

// RecordedEmits returns a snapshot of every Emit invocation's file
// list (nil for whole-program emits).
func (c *FakeCompiler) RecordedEmits() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.EmitCalls))
	copy(out, c.EmitCalls)
	return out
}

type fakeProgram struct {
	compiler *FakeCompiler
	sources  []string
}

func (p *fakeProgram) SourceFiles() []string {
	return append([]string(nil), p.sources...)
}

func (p *fakeProgram) Imports(file string) []string {
	return p.compiler.ImportsByFile[file]
}

func (p *fakeProgram) ResourceRefs(file string) []string {
	return p.compiler.ResourcesByFile[file]
}

func (p *fakeProgram) WaitStructure(ctx context.Context) error {
	return ctx.Err()
}

func (p *fakeProgram) OptionDiagnostics() []diag.Diagnostic {
	return p.compiler.OptionDiags
}

func (p *fakeProgram) StructuralDiagnostics() []diag.Diagnostic {
	return p.compiler.StructuralDiags
}

func (p *fakeProgram) SyntacticDiagnostics() []diag.Diagnostic {
	return p.compiler.SyntacticDiags
}

func (p *fakeProgram) SemanticDiagnostics() []diag.Diagnostic {
	p.compiler.mu.Lock()
	p.compiler.SemanticCalls++
	p.compiler.mu.Unlock()
	return p.compiler.SemanticDiags
}

func (p *fakeProgram) LazyRoutes(entryPoint string) []compilerapi.Route {
	return p.compiler.Routes
}

func (p *fakeProgram) ResolveEntryPoint(mainPath string) (string, error) {
	if p.compiler.EntryErr != nil {
		return "", p.compiler.EntryErr
	}
	if p.compiler.EntryPoint != "" {
		return p.compiler.EntryPoint, nil
	}
	return mainPath, nil
}

func (p *fakeProgram) Emit(files []string) (compilerapi.EmitResult, error) {
	p.compiler.mu.Lock()
	var recorded []string
	if files != nil {
		recorded = append([]string(nil), files...)
	}
	p.compiler.EmitCalls = append(p.compiler.EmitCalls, recorded)
	p.compiler.mu.Unlock()

	if p.compiler.EmitPanic != nil {
		panic(p.compiler.EmitPanic)
	}
	if p.compiler.EmitErr != nil {
		return compilerapi.EmitResult{}, p.compiler.EmitErr
	}
	if p.compiler.EmitSkipped {
		return compilerapi.EmitResult{Skipped: true}, nil
	}

	targets := files
	if targets == nil {
		targets = p.sources
	}
	res := compilerapi.EmitResult{}
	for _, src := range targets {
		out := strings.TrimSuffix(src, filepath.Ext(src)) + ".js"
		res.Files = append(res.Files, compilerapi.EmittedFile{
			Path: out,
			Text: []byte("compiled " + filepath.Base(src) + "\n"),
		})
	}
	return res, nil
}
