package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ember/internal/compilerapi"
	"ember/internal/diag"
	"ember/internal/routes"
	"ember/internal/testkit"
	"ember/internal/worker"
)

const testManifest = `
[project]
roots = ["main.em"]
main = "main.em"

[worker]
enabled = false
`

// newTestOrchestrator builds an orchestrator over a temp project with
// the worker disabled, so no process is ever spawned from a test.
func newTestOrchestrator(t *testing.T, compiler compilerapi.Compiler, manifest string) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ember.toml")
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	o, err := New(Options{ConfigPath: path, Compiler: compiler})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(o.Close)
	return o, dir
}

func hasCode(diags []diag.Diagnostic, code diag.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestFirstBuildIsWholeProgram(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		OptionDiags: []diag.Diagnostic{
			{Severity: diag.SevWarning, Code: diag.OptInfo, Phase: diag.PhaseOptions, Message: "target downleveled"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.NoOp || res.HasErrors() || res.EmitSkipped {
		t.Fatalf("first build result = %+v", res)
	}
	if !hasCode(res.Diagnostics, diag.OptInfo) {
		t.Error("option diagnostics not collected on first run")
	}

	emits := compiler.RecordedEmits()
	if len(emits) != 1 || emits[0] != nil {
		t.Fatalf("emits = %v, want one whole-program emit", emits)
	}
	if compiler.CreateCalls != 1 {
		t.Fatalf("CreateCalls = %d", compiler.CreateCalls)
	}
}

func TestNoOpWhenNothingChanged(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		OptionDiags: []diag.Diagnostic{
			{Severity: diag.SevWarning, Code: diag.OptInfo, Phase: diag.PhaseOptions, Message: "once"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.NoOp {
		t.Fatal("rebuild with no changes should be a no-op")
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("no-op produced diagnostics: %v", res.Diagnostics)
	}
	if compiler.CreateCalls != 1 {
		t.Errorf("no-op touched the program: %d creates", compiler.CreateCalls)
	}
}

func TestOptionDiagnosticsFirstRunOnly(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		OptionDiags: []diag.Diagnostic{
			{Severity: diag.SevWarning, Code: diag.OptInfo, Phase: diag.PhaseOptions, Message: "once"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))

	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if hasCode(res.Diagnostics, diag.OptInfo) {
		t.Error("option diagnostics repeated on an incremental rebuild")
	}
	if compiler.LastPrevious == nil {
		t.Error("incremental rebuild did not pass the previous program")
	}
}

func TestSmallChangeEmitsPerFile(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	changed := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path := filepath.Join(o.BasePath(), fmt.Sprintf("f%d.em", i))
		changed[path] = true
		o.Host().RecordWrite(path)
	}

	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.EmitSkipped {
		t.Fatal("clean incremental build skipped emit")
	}

	emits := compiler.RecordedEmits()[1:]
	if len(emits) != 5 {
		t.Fatalf("per-file emits = %d, want 5", len(emits))
	}
	for _, files := range emits {
		if len(files) != 1 || !changed[files[0]] {
			t.Errorf("unexpected emit batch %v", files)
		}
		delete(changed, files[0])
	}
	if len(changed) != 0 {
		t.Errorf("files never emitted: %v", changed)
	}
}

func TestBulkChangeEmitsWholeProgram(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 25; i++ {
		o.Host().RecordWrite(filepath.Join(o.BasePath(), fmt.Sprintf("bulk%d.em", i)))
	}
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	emits := compiler.RecordedEmits()
	if len(emits) != 2 {
		t.Fatalf("emits = %d, want first-run plus one bulk emit", len(emits))
	}
	if emits[1] != nil {
		t.Errorf("bulk emit batched per file: %v", emits[1])
	}
}

func TestErrorsSkipEmitAndKeepChanges(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		SemanticDiags: []diag.Diagnostic{
			{Severity: diag.SevError, Code: diag.UnknownCode, Phase: diag.PhaseSemantic, Message: "bad type"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasErrors() || !res.EmitSkipped {
		t.Fatalf("result = %+v, want errors and skipped emit", res)
	}
	if len(compiler.RecordedEmits()) != 0 {
		t.Error("emit ran despite error diagnostics")
	}

	// The dirty build must not consume first-run state: the next cycle
	// is a full rebuild, not a no-op.
	compiler.SemanticDiags = nil
	res, err = o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.NoOp || res.HasErrors() || res.EmitSkipped {
		t.Fatalf("retry result = %+v", res)
	}
	if compiler.CreateCalls != 2 {
		t.Errorf("CreateCalls = %d, want 2", compiler.CreateCalls)
	}

	// Only now is the slate clean.
	res, err = o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.NoOp {
		t.Error("cycle after clean build should be a no-op")
	}
}

func TestSyntaxPanicKeepsProgramState(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	compiler.CreatePanic = &compilerapi.SyntaxError{Msg: "unexpected token '}'"}
	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))
	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.EmitSkipped {
		t.Error("failed rebuild produced output")
	}
	if !hasCode(res.Diagnostics, diag.CompSyntaxError) {
		t.Errorf("diagnostics = %v, want syntax error", res.Diagnostics)
	}
	if hasCode(res.Diagnostics, diag.CompInternalError) {
		t.Error("syntax error misclassified as internal")
	}

	// A syntax error is a user error: the program handle survives and
	// the next rebuild still reuses it.
	compiler.CreatePanic = nil
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if compiler.LastPrevious == nil {
		t.Error("program state discarded after a plain syntax error")
	}
}

func TestInternalPanicInvalidatesProgram(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	compiler.CreatePanic = "nil pointer somewhere deep"
	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))
	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.EmitSkipped {
		t.Error("failed rebuild produced output")
	}
	if !hasCode(res.Diagnostics, diag.CompInternalError) {
		t.Errorf("diagnostics = %v, want internal error", res.Diagnostics)
	}

	compiler.CreatePanic = nil
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if compiler.LastPrevious != nil {
		t.Error("poisoned program state reused after an internal error")
	}
}

func TestEmitErrorClassifiedAsInternal(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	compiler.EmitErr = errors.New("emitter choked")
	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))
	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasCode(res.Diagnostics, diag.CompInternalError) || !res.EmitSkipped {
		t.Fatalf("result = %+v, want internal error with skipped emit", res)
	}
}

func TestRouteConflictAbortsCycle(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		Routes: []compilerapi.Route{
			{ModulePath: "app/lazy", ExportName: "Lazy", TargetPath: "/x/a.em"},
			{ModulePath: "app/lazy", ExportName: "Lazy", TargetPath: "/x/b.em"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	res, err := o.Cycle(context.Background())
	var conflict *routes.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *routes.ConflictError", err)
	}
	if !res.EmitSkipped {
		t.Error("conflicted cycle produced output")
	}
	if len(o.Routes()) != 0 {
		t.Errorf("registry mutated by conflicted cycle: %v", o.Routes())
	}
	if len(compiler.RecordedEmits()) != 0 {
		t.Error("emit ran after a route conflict")
	}
}

func TestRouteTargetsJoinNextRootSet(t *testing.T) {
	lazyTarget := "/discovered/lazy.em"
	compiler := &testkit.FakeCompiler{
		Routes: []compilerapi.Route{
			{ModulePath: "app/lazy", ExportName: "Lazy", TargetPath: lazyTarget},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, root := range compiler.LastRoots {
		if root == lazyTarget {
			found = true
		}
	}
	if !found {
		t.Errorf("roots %v do not include discovered target %s", compiler.LastRoots, lazyTarget)
	}
}

func TestEntryResolutionFailureDisablesDiscovery(t *testing.T) {
	compiler := &testkit.FakeCompiler{
		EntryErr: errors.New("no bootstrap call found"),
		Routes: []compilerapi.Route{
			{ModulePath: "app/lazy", TargetPath: "/x/a.em"},
		},
	}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasCode(res.Diagnostics, diag.RouteDiscoveryDisabled) {
		t.Error("resolution failure not surfaced as a warning")
	}
	if res.HasErrors() {
		t.Error("resolution failure must stay non-fatal")
	}
	if len(o.Routes()) != 0 {
		t.Errorf("routes discovered without an entry point: %v", o.Routes())
	}
}

// fakeChannel stands in for a worker process so channel-dependent
// paths run without spawning anything.
type fakeChannel struct {
	state    worker.State
	fallback bool
	updates  [][]string
}

func (c *fakeChannel) State() worker.State { return c.state }

func (c *fakeChannel) Active() bool { return c.state == worker.StateReady && !c.fallback }

func (c *fakeChannel) FallbackRequired() bool { return c.fallback }

func (c *fakeChannel) Start([]string) error { return nil }

func (c *fakeChannel) Terminate() { c.state = worker.StateTerminated }

func (c *fakeChannel) SendInit(worker.InitMessage) error { return nil }

func (c *fakeChannel) SendUpdate(rootNames, changedFiles []string) error {
	c.updates = append(c.updates, append([]string(nil), changedFiles...))
	return nil
}

func TestWorkerCoversSemanticDiagnostics(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	ch := &fakeChannel{state: worker.StateReady}
	o.channel = ch

	// First run always checks on the main thread, worker or not.
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if compiler.SemanticCalls != 1 {
		t.Fatalf("SemanticCalls after first run = %d, want 1", compiler.SemanticCalls)
	}
	if len(ch.updates) != 0 {
		t.Fatalf("worker updated on first run: %v", ch.updates)
	}

	// Incremental rebuild with an active worker: semantics are the
	// worker's job, and it receives the cycle's delta.
	changed := filepath.Join(o.BasePath(), "main.em")
	o.Host().RecordWrite(changed)
	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if compiler.SemanticCalls != 1 {
		t.Errorf("SemanticCalls = %d, worker-covered cycle checked on the main thread", compiler.SemanticCalls)
	}
	if len(ch.updates) != 1 || len(ch.updates[0]) != 1 || ch.updates[0][0] != changed {
		t.Errorf("worker updates = %v, want one with %s", ch.updates, changed)
	}
}

func TestWorkerFallbackRestoresMainThreadChecking(t *testing.T) {
	compiler := &testkit.FakeCompiler{}
	o, _ := newTestOrchestrator(t, compiler, testManifest)
	ch := &fakeChannel{state: worker.StateReady}
	o.channel = ch

	if _, err := o.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch.fallback = true

	o.Host().RecordWrite(filepath.Join(o.BasePath(), "main.em"))
	res, err := o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if compiler.SemanticCalls != 2 {
		t.Errorf("SemanticCalls = %d, crashed worker still trusted with semantics", compiler.SemanticCalls)
	}
	if !hasCode(res.Diagnostics, diag.WorkCrashed) {
		t.Error("crash not surfaced as a diagnostic")
	}
	if res.HasErrors() {
		t.Error("crash fallback must stay non-fatal")
	}
	if len(ch.updates) != 0 {
		t.Errorf("crashed worker still receiving updates: %v", ch.updates)
	}

	// The crash is reported once, not on every following cycle.
	o.Host().RecordWrite(filepath.Join(o.BasePath(), "other.em"))
	res, err = o.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if hasCode(res.Diagnostics, diag.WorkCrashed) {
		t.Error("crash warning repeated")
	}
	if compiler.SemanticCalls != 3 {
		t.Errorf("SemanticCalls = %d, fallback not durable", compiler.SemanticCalls)
	}
}

func TestCycleInFlightRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	compiler := &testkit.FakeCompiler{CreateHook: func() {
		close(entered)
		<-release
	}}
	o, _ := newTestOrchestrator(t, compiler, testManifest)

	done := make(chan error, 1)
	go func() {
		_, err := o.Cycle(context.Background())
		done <- err
	}()

	<-entered
	if _, err := o.Cycle(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Errorf("overlapping cycle err = %v, want ErrCycleInFlight", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
