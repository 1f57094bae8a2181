// Package host implements the file-content host shared between the
// orchestrator and the compiler: a read cache with explicit
// invalidation, the raw changed-file record, and the emitted-artifact
// store backing stale-output serving.
package host

import (
	"os"
	"path/filepath"
	"sync"
)

// entry caches one read result. Negative entries (exists == false)
// are cached too so repeated existence probes stay cheap; Invalidate
// clears both kinds.
type entry struct {
	content []byte
	exists  bool
}

// ContentHost caches file content for the compiler and records every
// write reported by the surrounding build tool.
type ContentHost struct {
	mu      sync.RWMutex
	baseDir string
	cache   map[string]entry

	// changed preserves report order; changedSet dedupes.
	changed    []string
	changedSet map[string]struct{}

	// resourceDeps maps a source file to resource paths it declares.
	resourceDeps map[string][]string
}

// NewContentHost creates an empty host rooted at baseDir.
func NewContentHost(baseDir string) *ContentHost {
	return &ContentHost{
		baseDir:      baseDir,
		cache:        make(map[string]entry),
		changedSet:   make(map[string]struct{}),
		resourceDeps: make(map[string][]string),
	}
}

// BaseDir returns the host's base directory.
func (h *ContentHost) BaseDir() string { return h.baseDir }

func (h *ContentHost) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(h.baseDir, path)
}

// ReadFile returns the content of path, reading from disk on a cache
// miss. Part of the compilerapi.FileHost contract.
func (h *ContentHost) ReadFile(path string) ([]byte, error) {
	key := h.abs(path)

	h.mu.RLock()
	e, ok := h.cache[key]
	h.mu.RUnlock()
	if ok {
		if !e.exists {
			return nil, os.ErrNotExist
		}
		return e.content, nil
	}

	// #nosec G304 -- path comes from the compiler's resolution
	content, err := os.ReadFile(key)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			h.cache[key] = entry{exists: false}
		}
		return nil, err
	}
	h.cache[key] = entry{content: content, exists: true}
	return content, nil
}

// Exists reports whether path is readable, caching the answer.
func (h *ContentHost) Exists(path string) bool {
	key := h.abs(path)

	h.mu.RLock()
	e, ok := h.cache[key]
	h.mu.RUnlock()
	if ok {
		return e.exists
	}

	_, err := os.Stat(key)
	exists := err == nil

	h.mu.Lock()
	if !exists {
		h.cache[key] = entry{exists: false}
	}
	h.mu.Unlock()
	return exists
}

// Invalidate drops any cached content or existence answer for path.
// Called for files that newly appeared in the program so a stale
// negative entry cannot shadow them.
func (h *ContentHost) Invalidate(path string) {
	key := h.abs(path)
	h.mu.Lock()
	delete(h.cache, key)
	h.mu.Unlock()
}

// RecordWrite notes that path was modified. Order of first report is
// preserved; duplicate reports are collapsed.
func (h *ContentHost) RecordWrite(path string) {
	key := h.abs(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cache, key)
	if _, seen := h.changedSet[key]; seen {
		return
	}
	h.changedSet[key] = struct{}{}
	h.changed = append(h.changed, key)
}

// ChangedFiles returns the raw changed-file list in report order.
func (h *ContentHost) ChangedFiles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.changed))
	copy(out, h.changed)
	return out
}

// ClearChanged forgets all recorded writes. Called only after a clean
// build so nothing is silently dropped.
func (h *ContentHost) ClearChanged() {
	h.mu.Lock()
	h.changed = nil
	h.changedSet = make(map[string]struct{})
	h.mu.Unlock()
}

// SetResourceDeps records the resource paths declared by file.
func (h *ContentHost) SetResourceDeps(file string, deps []string) {
	key := h.abs(file)
	h.mu.Lock()
	h.resourceDeps[key] = append([]string(nil), deps...)
	h.mu.Unlock()
}

// ResourceDeps returns the declared resource paths of file.
func (h *ContentHost) ResourceDeps(file string) []string {
	key := h.abs(file)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.resourceDeps[key]
}
