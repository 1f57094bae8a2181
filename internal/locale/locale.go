// Package locale resolves per-locale data files for automatic locale
// registration. This core consumes the files; producing them is the
// i18n toolchain's job.
package locale

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"
)

// Data is the decoded content of one locale data file.
type Data struct {
	ID            string            `json:"id"`
	DateFormats   map[string]string `json:"dateFormats,omitempty"`
	NumberSymbols map[string]string `json:"numberSymbols,omitempty"`
	PluralRules   []string          `json:"pluralRules,omitempty"`
}

// NotFoundError reports that no data file matched a locale id at any
// of the three lookup levels. Non-fatal: callers downgrade to a
// warning and disable automatic locale registration.
type NotFoundError struct {
	ID    string
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no locale data for %q (tried %d candidates)", e.ID, len(e.Tried))
}

// Candidates returns the lookup chain for id: the exact id, the
// case/separator-normalized id, then parent-locale prefixes.
func Candidates(id string) []string {
	out := []string{id}
	seen := map[string]struct{}{id: {}}

	add := func(c string) {
		if c == "" || c == "und" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	if tag, err := language.Parse(id); err == nil {
		add(tag.String())
		for parent := tag.Parent(); !parent.IsRoot(); parent = parent.Parent() {
			add(parent.String())
		}
	}
	return out
}

// Find returns the path of the data file for id under dataDir,
// together with the locale id it actually matched.
func Find(dataDir, id string) (path, matched string, err error) {
	candidates := Candidates(id)
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		p := filepath.Join(dataDir, c+".json")
		tried = append(tried, p)
		if _, statErr := os.Stat(p); statErr == nil {
			return p, c, nil
		}
	}
	return "", "", &NotFoundError{ID: id, Tried: tried}
}

// Load finds and decodes the data file for id.
func Load(dataDir, id string) (*Data, error) {
	path, matched, err := Find(dataDir, id)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is derived from the configured data dir
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale data %q: %w", path, err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid locale data %q: %w", path, err)
	}
	if data.ID == "" {
		data.ID = matched
	}
	return &data, nil
}
