package diag

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

// Bag collects the diagnostics of one build cycle, bounded by max.
type Bag struct {
	items []Diagnostic
	max   uint16
}

// NewBag creates an empty Bag with the given capacity limit.
func NewBag(max int) *Bag {
	capped, err := safecast.Conv[uint16](max)
	if err != nil {
		panic(fmt.Errorf("bag capacity overflow: %w", err))
	}
	return &Bag{
		items: make([]Diagnostic, 0, max),
		max:   capped,
	}
}

// Add appends a diagnostic unless the limit is reached.
// Returns false when the diagnostic was dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Error is a shortcut for adding an error-severity diagnostic.
func (b *Bag) Error(code Code, phase Phase, msg string) {
	b.Add(Diagnostic{Severity: SevError, Code: code, Phase: phase, Message: msg})
}

// Warn is a shortcut for adding a warning-severity diagnostic.
func (b *Bag) Warn(code Code, phase Phase, msg string) {
	b.Add(Diagnostic{Severity: SevWarning, Code: code, Phase: phase, Message: msg})
}

// HasErrors returns true if any diagnostic has Severity >= Error.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any diagnostic has Severity >= Warning.
func (b *Bag) HasWarnings() bool {
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns a read-only view of the collected diagnostics.
// Do not modify the returned slice; it aliases the Bag's storage.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Merge appends all diagnostics from other, growing max if needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	newTotal := len(b.items) + len(other.items)
	if newTotal > int(b.max) {
		capped, err := safecast.Conv[uint16](newTotal)
		if err != nil {
			panic(fmt.Errorf("bag capacity overflow: %w", err))
		}
		b.max = capped
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics by file, phase, severity (desc), code for
// stable, deterministic output.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.File != dj.File {
			return di.File < dj.File
		}
		if di.Phase != dj.Phase {
			return di.Phase < dj.Phase
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}
