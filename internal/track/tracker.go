// Package track filters the host's raw changed-file record down to
// the files that can affect compilation output.
package track

import (
	"path/filepath"
	"strings"
)

// Source is the raw changed-file record, normally the content host.
type Source interface {
	ChangedFiles() []string
	ClearChanged()
}

// defaultExtensions are the extensions tracked out of the box:
// sources, templates and styles.
var defaultExtensions = []string{".em", ".html", ".css"}

// Tracker reduces the raw write record to compilation-relevant paths.
type Tracker struct {
	source Source
	exts   map[string]struct{}
}

// New creates a Tracker over source with the default extension set.
func New(source Source) *Tracker {
	t := &Tracker{
		source: source,
		exts:   make(map[string]struct{}, len(defaultExtensions)),
	}
	for _, ext := range defaultExtensions {
		t.exts[ext] = struct{}{}
	}
	return t
}

// TrackExtension adds ext (with or without leading dot) to the
// tracked set. Callers register extra extensions at runtime, e.g. for
// generated inputs.
func (t *Tracker) TrackExtension(ext string) {
	if ext == "" {
		return
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	t.exts[strings.ToLower(ext)] = struct{}{}
}

// ChangedRelevant returns the changed files whose extension is in the
// tracked set, preserving the order writes were first reported in.
func (t *Tracker) ChangedRelevant() []string {
	var out []string
	for _, path := range t.source.ChangedFiles() {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := t.exts[ext]; ok {
			out = append(out, path)
		}
	}
	return out
}

// Reset forgets all recorded changes. Call only after a cycle with
// zero error diagnostics and a non-skipped emit; otherwise changes
// must accumulate into the next cycle.
func (t *Tracker) Reset() {
	t.source.ClearChanged()
}
