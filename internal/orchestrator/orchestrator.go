// Package orchestrator drives incremental compilation: it owns the
// program handle across rebuilds, tracks changed inputs, folds
// discovered lazy routes back into the root set, coordinates the
// out-of-process type checker, and decides the emit strategy from the
// cycle's diagnostics.
package orchestrator

import (
	"errors"
	"fmt"
	"sync/atomic"

	"ember/internal/compilerapi"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/host"
	"ember/internal/locale"
	"ember/internal/routes"
	"ember/internal/trace"
	"ember/internal/track"
	"ember/internal/worker"
)

// ErrCycleInFlight is returned when Cycle is entered while a previous
// cycle has not finished. At most one build runs per orchestrator.
var ErrCycleInFlight = errors.New("build cycle already in flight")

// defaultMaxDiagnostics bounds the diagnostics collected per cycle.
const defaultMaxDiagnostics = 100

// workerLink is the slice of the worker channel the driver uses.
// Satisfied by *worker.Channel.
type workerLink interface {
	State() worker.State
	Active() bool
	FallbackRequired() bool
	Start(extraArgs []string) error
	SendInit(init worker.InitMessage) error
	SendUpdate(rootNames, changedFiles []string) error
	Terminate()
}

// Options configure orchestrator construction.
type Options struct {
	// ConfigPath is required; construction fails fast without it.
	ConfigPath string
	Overrides  config.Overrides
	Compiler   compilerapi.Compiler
	Tracer     trace.Tracer
	// MaxDiagnostics bounds the per-cycle diagnostic count;
	// defaultMaxDiagnostics when zero.
	MaxDiagnostics int
}

// Orchestrator is the single owner of all build state. Its methods
// must be called from one goroutine; overlapping cycles are rejected,
// not serialized.
type Orchestrator struct {
	cfg      *config.Config
	compiler compilerapi.Compiler
	tracer   trace.Tracer
	maxDiags int

	fileHost  *host.ContentHost
	artifacts *host.ArtifactStore
	tracker   *track.Tracker
	registry  *routes.Registry
	channel   workerLink

	// Build state, mutated in place across cycles.
	program    compilerapi.Program
	firstRun   bool
	entryPoint string
	// routeDiscovery is downgraded to false when entry-point
	// resolution fails; discovery then stays off for the run.
	routeDiscovery bool
	entryResolved  bool
	// localeRegistered is false when no locale data file was found.
	localeRegistered bool
	// crashReported dedupes the worker-crash warning across cycles.
	crashReported bool

	lastEmitSkipped bool
	inFlight        atomic.Bool
}

// New constructs an orchestrator from a configuration path plus
// caller overrides.
func New(opts Options) (*Orchestrator, error) {
	if opts.Compiler == nil {
		return nil, fmt.Errorf("missing compiler")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}

	cfg, err := config.Load(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return nil, err
	}

	artifacts, err := host.NewArtifactStore(cfg.OutDir, cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	fileHost := host.NewContentHost(cfg.BasePath)
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = defaultMaxDiagnostics
	}

	o := &Orchestrator{
		cfg:              cfg,
		compiler:         opts.Compiler,
		tracer:           tracer,
		maxDiags:         maxDiags,
		fileHost:         fileHost,
		artifacts:        artifacts,
		tracker:          track.New(fileHost),
		registry:         routes.NewRegistry(cfg.Compiler.Mode),
		firstRun:         true,
		routeDiscovery:   true,
		localeRegistered: true,
		lastEmitSkipped:  true, // nothing emitted yet
	}

	if cfg.EntryPoint != "" {
		o.entryPoint = cfg.EntryPoint
		o.entryResolved = true
	}
	if cfg.WorkerEnabled {
		o.channel = worker.NewChannel(tracer)
	}

	o.checkLocale()
	return o, nil
}

// checkLocale validates the configured locale against the data files.
// Failure is non-fatal: it disables automatic locale registration.
func (o *Orchestrator) checkLocale() {
	if o.cfg.I18n.Locale == "" || o.cfg.I18n.DataDir == "" {
		return
	}
	if _, err := locale.Load(o.cfg.I18n.DataDir, o.cfg.I18n.Locale); err != nil {
		o.localeRegistered = false
		o.tracer.Logf(trace.LevelWarn,
			"locale data unavailable for %q: %v; automatic locale registration disabled",
			o.cfg.I18n.Locale, err)
	}
}

// Host exposes the file-content host so the surrounding build tool
// can report writes into it.
func (o *Orchestrator) Host() *host.ContentHost { return o.fileHost }

// BasePath returns the resolved project base path.
func (o *Orchestrator) BasePath() string { return o.cfg.BasePath }

// Tracker exposes the change tracker, e.g. to register extra tracked
// extensions.
func (o *Orchestrator) Tracker() *track.Tracker { return o.tracker }

// Routes returns the currently registered lazy routes.
func (o *Orchestrator) Routes() map[string]string { return o.registry.Routes() }

// LocaleRegistered reports whether automatic locale registration is
// active.
func (o *Orchestrator) LocaleRegistered() bool { return o.localeRegistered }

// Close terminates the worker, if any.
func (o *Orchestrator) Close() {
	if o.channel != nil {
		o.channel.Terminate()
	}
}

// rootNames re-resolves the root set for the coming cycle: the
// configured roots plus every lazy-route target registered so far. A
// route discovered in the previous cycle may name a file not
// reachable by static import.
func (o *Orchestrator) rootNames() []string {
	names := make([]string, 0, len(o.cfg.RootNames)+o.registry.Len())
	seen := make(map[string]struct{}, cap(names))
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		names = append(names, path)
	}
	for _, r := range o.cfg.RootNames {
		add(r)
	}
	for _, t := range o.registry.Targets() {
		add(t)
	}
	return names
}

// bagToSlice snapshots a bag into an owned slice.
func bagToSlice(bag *diag.Bag) []diag.Diagnostic {
	out := make([]diag.Diagnostic, bag.Len())
	copy(out, bag.Items())
	return out
}
