package host

import (
	"sort"
	"strings"

	"ember/internal/compilerapi"
)

// ReplacingHost rewrites path prefixes before delegating to an inner
// host. The worker process uses it to honor the path-replacement map
// from its Init message.
type ReplacingHost struct {
	inner compilerapi.FileHost
	// prefixes, longest first, so the most specific mapping wins.
	prefixes []string
	targets  map[string]string
}

// NewReplacingHost wraps inner with the given prefix replacements.
func NewReplacingHost(inner compilerapi.FileHost, replacements map[string]string) *ReplacingHost {
	prefixes := make([]string, 0, len(replacements))
	for p := range replacements {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return &ReplacingHost{inner: inner, prefixes: prefixes, targets: replacements}
}

func (h *ReplacingHost) rewrite(path string) string {
	for _, prefix := range h.prefixes {
		if strings.HasPrefix(path, prefix) {
			return h.targets[prefix] + path[len(prefix):]
		}
	}
	return path
}

// ReadFile implements compilerapi.FileHost.
func (h *ReplacingHost) ReadFile(path string) ([]byte, error) {
	return h.inner.ReadFile(h.rewrite(path))
}

// Exists implements compilerapi.FileHost.
func (h *ReplacingHost) Exists(path string) bool {
	return h.inner.Exists(h.rewrite(path))
}

// Invalidate implements compilerapi.FileHost.
func (h *ReplacingHost) Invalidate(path string) {
	h.inner.Invalidate(h.rewrite(path))
}
