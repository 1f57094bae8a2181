// Package compilerapi declares the contract between the build
// orchestrator and the language compiler it drives. The compiler
// itself lives outside this repository; the orchestrator only depends
// on these interfaces.
package compilerapi

import (
	"context"
	"fmt"

	"ember/internal/diag"
)

// Mode selects how lazily loaded modules are referenced in output.
type Mode uint8

const (
	// ModeJIT keeps raw module paths; code is interpreted at runtime.
	ModeJIT Mode = iota
	// ModeAOT rewrites references to pre-lowered factory artifacts.
	ModeAOT
)

func (m Mode) String() string {
	switch m {
	case ModeJIT:
		return "jit"
	case ModeAOT:
		return "aot"
	}
	return "unknown"
}

// Options are the compiler options threaded through every call.
// Extra carries option keys the orchestrator does not interpret.
type Options struct {
	BasePath          string
	Mode              Mode
	DeferredStructure bool
	NoCodegen         bool
	Extra             map[string]string
}

// FileHost provides source content to the compiler and lets the
// orchestrator invalidate entries that may have gone stale.
type FileHost interface {
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	Invalidate(path string)
}

// Route is one lazily loaded module reference discovered by static
// analysis of the program.
type Route struct {
	ModulePath string
	ExportName string
	TargetPath string
}

// EmittedFile is one output artifact produced by an emit pass.
type EmittedFile struct {
	Path      string
	Text      []byte
	SourceMap []byte
}

// EmitResult reports the artifacts and diagnostics of one emit pass.
// Skipped is set when the compiler produced no output.
type EmitResult struct {
	Files       []EmittedFile
	Diagnostics []diag.Diagnostic
	Skipped     bool
}

// Program is the handle for one compiled program state. Handles are
// replaced wholesale on every update; a handle passed as the previous
// program to CreateProgram must not be used again afterwards.
type Program interface {
	// SourceFiles lists every file folded into the program.
	SourceFiles() []string

	// Imports returns the statically resolved import targets of file.
	Imports(file string) []string

	// ResourceRefs returns resource references discovered in file.
	ResourceRefs(file string) []string

	// WaitStructure blocks until asynchronous structural loading has
	// completed. It returns immediately for programs built without
	// deferred structure.
	WaitStructure(ctx context.Context) error

	// OptionDiagnostics validates the compiler configuration.
	OptionDiagnostics() []diag.Diagnostic
	// StructuralDiagnostics reports structural loading problems.
	StructuralDiagnostics() []diag.Diagnostic
	// SyntacticDiagnostics reports per-file syntax problems.
	SyntacticDiagnostics() []diag.Diagnostic
	// SemanticDiagnostics reports type errors and other semantic
	// findings. Expensive; skipped when a worker covers semantics.
	SemanticDiagnostics() []diag.Diagnostic

	// LazyRoutes lists the deferred-load references reachable from
	// entryPoint. An empty entryPoint disables discovery.
	LazyRoutes(entryPoint string) []Route

	// ResolveEntryPoint statically resolves the bootstrap entry point
	// from the given main file.
	ResolveEntryPoint(mainPath string) (string, error)

	// Emit lowers the named files to output artifacts. A nil files
	// slice requests a whole-program emit.
	Emit(files []string) (EmitResult, error)
}

// Compiler creates program handles. previous, when non-nil, is a reuse
// hint for incremental compilation; the compiler decides internally
// how much state it can carry over.
type Compiler interface {
	CreateProgram(rootNames []string, opts Options, host FileHost, previous Program) (Program, error)
}

// SyntaxError marks an expected, user-caused failure thrown by the
// compiler. It is reported by message alone, without a stack, and
// never invalidates the current program handle.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s", e.Msg)
}
