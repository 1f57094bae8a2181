// Package routes maintains the registry of lazily loaded module
// routes discovered across build cycles.
package routes

import (
	"fmt"
	"sort"
	"strings"

	"ember/internal/compilerapi"
	"ember/internal/diag"
)

// DefaultExport is the sentinel export name used when a route does
// not name one.
const DefaultExport = "default"

// keyRule describes how a route key is derived in one compilation
// mode. Mode divergence lives in this table, not in branched logic.
type keyRule struct {
	rewritePath  func(string) string
	exportSuffix string
}

var keyRules = map[compilerapi.Mode]keyRule{
	compilerapi.ModeJIT: {
		rewritePath: func(p string) string { return p },
	},
	compilerapi.ModeAOT: {
		// Pre-lowered builds reference the generated factory artifact
		// instead of the source module.
		rewritePath:  func(p string) string { return p + ".factory" },
		exportSuffix: "Factory",
	},
}

// Key derives the registry key for a route under mode.
func Key(mode compilerapi.Mode, route compilerapi.Route) string {
	rule, ok := keyRules[mode]
	if !ok {
		rule = keyRules[compilerapi.ModeJIT]
	}
	export := route.ExportName
	if export == "" {
		export = DefaultExport
	}
	return rule.rewritePath(route.ModulePath) + "#" + export + rule.exportSuffix
}

// ConflictError reports a single discovery pass resolving one route
// key to two different targets. Downstream consumers cannot
// disambiguate at request time, so the whole cycle fails.
type ConflictError struct {
	RouteKey string
	First    string
	Second   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate lazy route %q resolves to both %q and %q",
		e.RouteKey, e.First, e.Second)
}

type entryState struct {
	target     string
	generation uint64
}

// Registry accumulates route key to target mappings. Entries are
// added or overwritten across rebuilds and never removed; stale
// entries persist until a full restart. Each entry records the
// generation it was last seen in so a pruning pass stays possible.
type Registry struct {
	mode       compilerapi.Mode
	entries    map[string]entryState
	generation uint64
}

// NewRegistry creates an empty registry for mode.
func NewRegistry(mode compilerapi.Mode) *Registry {
	return &Registry{
		mode:    mode,
		entries: make(map[string]entryState),
	}
}

// MergeDiscovered folds one discovery pass into the registry.
//
// Two fresh entries sharing a key but not a target abort the merge
// with a *ConflictError. A fresh entry whose target differs from the
// registered one wins, but produces a warning advising a full rebuild
// to validate that no overlap was lost.
func (r *Registry) MergeDiscovered(fresh []compilerapi.Route) ([]diag.Diagnostic, error) {
	r.generation++

	staged := make(map[string]string, len(fresh))
	for _, route := range fresh {
		key := Key(r.mode, route)
		if prev, ok := staged[key]; ok && prev != route.TargetPath {
			return nil, &ConflictError{RouteKey: key, First: prev, Second: route.TargetPath}
		}
		staged[key] = route.TargetPath
	}

	var warnings []diag.Diagnostic
	keys := make([]string, 0, len(staged))
	for key := range staged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target := staged[key]
		if prev, ok := r.entries[key]; ok && prev.target != target {
			warnings = append(warnings, diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.RouteRemapped,
				Phase:    diag.PhaseStructural,
				Message: fmt.Sprintf(
					"lazy route %q moved from %q to %q; run a full rebuild to validate no overlap was lost",
					key, prev.target, target),
			})
		}
		r.entries[key] = entryState{target: target, generation: r.generation}
	}
	return warnings, nil
}

// Routes returns a copy of the current key to target map.
func (r *Registry) Routes() map[string]string {
	out := make(map[string]string, len(r.entries))
	for key, st := range r.entries {
		out[key] = st.target
	}
	return out
}

// Targets returns the distinct target paths in sorted order. The
// orchestrator folds these into the next cycle's root set.
func (r *Registry) Targets() []string {
	seen := make(map[string]struct{}, len(r.entries))
	var out []string
	for _, st := range r.entries {
		if _, ok := seen[st.target]; ok {
			continue
		}
		seen[st.target] = struct{}{}
		out = append(out, st.target)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.entries) }

// ParseAddition converts a caller-supplied "module#export=target"
// override into a Route. The "#export" part is optional.
func ParseAddition(spec string) (compilerapi.Route, error) {
	name, target, ok := strings.Cut(spec, "=")
	if !ok || name == "" || target == "" {
		return compilerapi.Route{}, fmt.Errorf("invalid lazy route %q (expected module[#export]=path)", spec)
	}
	module, export, _ := strings.Cut(name, "#")
	return compilerapi.Route{ModulePath: module, ExportName: export, TargetPath: target}, nil
}
