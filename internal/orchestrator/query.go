package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CompiledOutput is what the surrounding build tool receives for one
// input file.
type CompiledOutput struct {
	Text      []byte
	SourceMap []byte
	// ExtraDependencies lists files the caller should watch and retry
	// on; populated in stale-output mode when no artifact exists yet.
	ExtraDependencies []string
}

// MissingFileError reports a query for a file that is not part of the
// active compilation, or whose expected output was never produced.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s is missing from the compiled output", e.Path)
}

// OutputPathFor maps a source path to its expected emitted artifact.
func OutputPathFor(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + ".js"
}

// GetCompiledOutput serves the compiled artifact for fileName. In
// stale-output mode (last cycle skipped emit) it serves previously
// emitted artifacts, or an empty result naming the changed files as
// extra dependencies so the caller retries after the next cycle. When
// emit did run, a missing input or output is a hard error.
func (o *Orchestrator) GetCompiledOutput(fileName string) (CompiledOutput, error) {
	outPath := OutputPathFor(fileName)

	if o.lastEmitSkipped {
		if a, ok := o.artifacts.Get(outPath); ok {
			return CompiledOutput{Text: a.Text, SourceMap: a.SourceMap}, nil
		}
		return CompiledOutput{ExtraDependencies: o.fileHost.ChangedFiles()}, nil
	}

	if o.program == nil || !o.programContains(fileName) {
		return CompiledOutput{}, &MissingFileError{Path: fileName}
	}
	a, ok := o.artifacts.Get(outPath)
	if !ok {
		return CompiledOutput{}, &MissingFileError{Path: outPath}
	}
	return CompiledOutput{Text: a.Text, SourceMap: a.SourceMap}, nil
}

func (o *Orchestrator) programContains(fileName string) bool {
	for _, f := range o.program.SourceFiles() {
		if f == fileName {
			return true
		}
	}
	return false
}

// GetDependencies returns the ordered set of files fileName depends
// on: statically resolved imports, resource references found in the
// file, and transitively declared resource dependencies.
func (o *Orchestrator) GetDependencies(fileName string) []string {
	if o.program == nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(path string) bool {
		if _, ok := seen[path]; ok {
			return false
		}
		seen[path] = struct{}{}
		out = append(out, path)
		return true
	}

	for _, imp := range o.program.Imports(fileName) {
		add(imp)
	}

	// Resource references, then their declared dependencies,
	// transitively.
	queue := o.program.ResourceRefs(fileName)
	for len(queue) > 0 {
		res := queue[0]
		queue = queue[1:]
		if !add(res) {
			continue
		}
		queue = append(queue, o.fileHost.ResourceDeps(res)...)
	}
	return out
}
