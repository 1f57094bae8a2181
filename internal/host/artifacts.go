package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Artifact is one previously emitted output.
type Artifact struct {
	Path      string
	Text      []byte
	SourceMap []byte
}

const artifactCacheSize = 256

// ArtifactStore keeps emitted outputs for stale-output serving: a
// bounded in-memory cache in front of the on-disk output directory.
type ArtifactStore struct {
	mu       sync.Mutex
	outDir   string
	basePath string
	cache    *lru.Cache[string, Artifact]
}

// NewArtifactStore creates a store writing under outDir. The source
// tree under basePath is mirrored below outDir so two inputs sharing a
// base name never collide on disk.
func NewArtifactStore(outDir, basePath string) (*ArtifactStore, error) {
	cache, err := lru.New[string, Artifact](artifactCacheSize)
	if err != nil {
		return nil, err
	}
	return &ArtifactStore{outDir: outDir, basePath: basePath, cache: cache}, nil
}

func (s *ArtifactStore) diskPath(path string) string {
	if rel, err := filepath.Rel(s.basePath, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join(s.outDir, rel)
	}
	// Outside the base tree: keep the full path shape under outDir.
	return filepath.Join(s.outDir, strings.TrimPrefix(filepath.Clean(path), string(filepath.Separator)))
}

// Put stores an emitted artifact in memory and on disk.
func (s *ArtifactStore) Put(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(a.Path, a)

	p := s.diskPath(a.Path)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(p, a.Text, 0o600); err != nil {
		return fmt.Errorf("failed to write artifact %q: %w", p, err)
	}
	if len(a.SourceMap) > 0 {
		if err := os.WriteFile(p+".map", a.SourceMap, 0o600); err != nil {
			return fmt.Errorf("failed to write source map for %q: %w", p, err)
		}
	}
	return nil
}

// Get returns a previously emitted artifact, falling back to the
// on-disk copy when it has been evicted from the cache.
func (s *ArtifactStore) Get(path string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.cache.Get(path); ok {
		return a, true
	}

	p := s.diskPath(path)
	// #nosec G304 -- path is derived from the store's own output dir
	text, err := os.ReadFile(p)
	if err != nil {
		return Artifact{}, false
	}
	a := Artifact{Path: path, Text: text}
	if sm, err := os.ReadFile(p + ".map"); err == nil { // #nosec G304
		a.SourceMap = sm
	}
	s.cache.Add(path, a)
	return a, true
}
