// Package config loads the ember.toml project manifest and merges
// caller overrides into the orchestrator's effective configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"ember/internal/compilerapi"
)

var (
	// ErrMissingConfigPath indicates the orchestrator was constructed
	// without a configuration path.
	ErrMissingConfigPath = errors.New("missing configuration path")
	// ErrNoRoots indicates the manifest declares no root files.
	ErrNoRoots = errors.New("no root files configured")
)

// MissingTranslation selects how untranslated messages are reported.
type MissingTranslation uint8

const (
	// MissingWarning reports untranslated messages as warnings.
	MissingWarning MissingTranslation = iota
	// MissingError reports them as errors.
	MissingError
	// MissingIgnore suppresses them.
	MissingIgnore
)

// ParseMissingTranslation converts a policy string.
func ParseMissingTranslation(s string) (MissingTranslation, error) {
	switch s {
	case "", "warning":
		return MissingWarning, nil
	case "error":
		return MissingError, nil
	case "ignore":
		return MissingIgnore, nil
	default:
		return MissingWarning, fmt.Errorf("invalid missing-translation policy %q (expected: error|warning|ignore)", s)
	}
}

func (m MissingTranslation) String() string {
	switch m {
	case MissingError:
		return "error"
	case MissingIgnore:
		return "ignore"
	default:
		return "warning"
	}
}

// I18n holds translation input and output settings.
type I18n struct {
	InFile    string
	InFormat  string
	OutFile   string
	OutFormat string
	Locale    string
	DataDir   string
	Missing   MissingTranslation
}

// Config is the effective orchestrator configuration: manifest
// content merged with caller overrides, paths resolved.
type Config struct {
	BasePath  string
	OutDir    string
	RootNames []string

	EntryPoint string
	MainPath   string

	Compiler compilerapi.Options
	I18n     I18n

	WorkerEnabled bool
	WorkerArgs    []string

	// ExtraRoutes are caller-supplied lazy routes folded into every
	// discovery pass unconditionally.
	ExtraRoutes []compilerapi.Route

	// PathReplacements rewrite path prefixes inside the worker.
	PathReplacements map[string]string
}

// Overrides are the caller-supplied knobs recognized on top of the
// manifest. Pointer and empty-string fields mean "not set".
type Overrides struct {
	EntryPoint         string
	MainPath           string
	NoCodegen          *bool
	Locale             string
	I18nInFile         string
	I18nInFormat       string
	I18nOutFile        string
	I18nOutFormat      string
	MissingTranslation string
	Worker             *bool
	// ExtraRoutes maps module names (optionally "module#export") to
	// target file paths.
	ExtraRoutes map[string]string
}

type manifest struct {
	Project struct {
		Root  string   `toml:"root"`
		Out   string   `toml:"out"`
		Roots []string `toml:"roots"`
		Entry string   `toml:"entry"`
		Main  string   `toml:"main"`
	} `toml:"project"`
	Compiler struct {
		Mode              string            `toml:"mode"`
		NoCodegen         bool              `toml:"no_codegen"`
		DeferredStructure bool              `toml:"deferred_structure"`
		Extra             map[string]string `toml:"extra"`
	} `toml:"compiler"`
	I18n struct {
		InFile             string `toml:"in_file"`
		InFormat           string `toml:"in_format"`
		OutFile            string `toml:"out_file"`
		OutFormat          string `toml:"out_format"`
		Locale             string `toml:"locale"`
		DataDir            string `toml:"data_dir"`
		MissingTranslation string `toml:"missing_translation"`
	} `toml:"i18n"`
	Worker struct {
		Enabled *bool    `toml:"enabled"`
		Args    []string `toml:"args"`
	} `toml:"worker"`
	Paths map[string]string `toml:"paths"`
}

// Load reads the manifest at path and merges overrides. The path is
// required; construction fails fast without one.
func Load(path string, ov Overrides) (*Config, error) {
	if path == "" {
		return nil, ErrMissingConfigPath
	}

	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}

	configDir := filepath.Dir(path)
	base := configDir
	if m.Project.Root != "" {
		base = filepath.Join(configDir, m.Project.Root)
	}
	outDir := filepath.Join(configDir, "out")
	if m.Project.Out != "" {
		outDir = filepath.Join(configDir, m.Project.Out)
	}

	if len(m.Project.Roots) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRoots)
	}
	roots := make([]string, 0, len(m.Project.Roots))
	for _, r := range m.Project.Roots {
		roots = append(roots, absFrom(base, r))
	}

	mode := compilerapi.ModeJIT
	switch m.Compiler.Mode {
	case "", "jit":
	case "aot":
		mode = compilerapi.ModeAOT
	default:
		return nil, fmt.Errorf("%s: invalid compiler mode %q (expected: jit|aot)", path, m.Compiler.Mode)
	}

	cfg := &Config{
		BasePath:  base,
		OutDir:    outDir,
		RootNames: roots,
		Compiler: compilerapi.Options{
			BasePath:          base,
			Mode:              mode,
			DeferredStructure: m.Compiler.DeferredStructure,
			NoCodegen:         m.Compiler.NoCodegen,
			Extra:             m.Compiler.Extra,
		},
		WorkerEnabled:    true,
		WorkerArgs:       m.Worker.Args,
		PathReplacements: m.Paths,
	}
	if m.Worker.Enabled != nil {
		cfg.WorkerEnabled = *m.Worker.Enabled
	}

	cfg.EntryPoint = firstNonEmpty(ov.EntryPoint, m.Project.Entry)
	cfg.MainPath = firstNonEmpty(ov.MainPath, m.Project.Main)
	if cfg.EntryPoint != "" {
		cfg.EntryPoint = absFrom(base, cfg.EntryPoint)
	}
	if cfg.MainPath != "" {
		cfg.MainPath = absFrom(base, cfg.MainPath)
	}

	if ov.NoCodegen != nil {
		cfg.Compiler.NoCodegen = *ov.NoCodegen
	}
	if ov.Worker != nil {
		cfg.WorkerEnabled = *ov.Worker
	}

	missing, err := ParseMissingTranslation(firstNonEmpty(ov.MissingTranslation, m.I18n.MissingTranslation))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.I18n = I18n{
		InFile:    firstNonEmpty(ov.I18nInFile, m.I18n.InFile),
		InFormat:  firstNonEmpty(ov.I18nInFormat, m.I18n.InFormat),
		OutFile:   firstNonEmpty(ov.I18nOutFile, m.I18n.OutFile),
		OutFormat: firstNonEmpty(ov.I18nOutFormat, m.I18n.OutFormat),
		Locale:    firstNonEmpty(ov.Locale, m.I18n.Locale),
		Missing:   missing,
	}
	if m.I18n.DataDir != "" {
		cfg.I18n.DataDir = absFrom(configDir, m.I18n.DataDir)
	}

	// Deterministic order for the extra routes regardless of map
	// iteration.
	names := make([]string, 0, len(ov.ExtraRoutes))
	for name := range ov.ExtraRoutes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		module, export, _ := strings.Cut(name, "#")
		cfg.ExtraRoutes = append(cfg.ExtraRoutes, compilerapi.Route{
			ModulePath: module,
			ExportName: export,
			TargetPath: absFrom(base, ov.ExtraRoutes[name]),
		})
	}

	return cfg, nil
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
