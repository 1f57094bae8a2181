package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ember/internal/compilerapi"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
roots = ["src/main.em"]
`)

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BasePath != dir {
		t.Errorf("BasePath = %q, want %q", cfg.BasePath, dir)
	}
	if want := filepath.Join(dir, "out"); cfg.OutDir != want {
		t.Errorf("OutDir = %q, want %q", cfg.OutDir, want)
	}
	if want := filepath.Join(dir, "src", "main.em"); len(cfg.RootNames) != 1 || cfg.RootNames[0] != want {
		t.Errorf("RootNames = %v, want [%s]", cfg.RootNames, want)
	}
	if cfg.Compiler.Mode != compilerapi.ModeJIT {
		t.Errorf("Mode = %v, want jit default", cfg.Compiler.Mode)
	}
	if !cfg.WorkerEnabled {
		t.Error("worker should default to enabled")
	}
	if cfg.I18n.Missing != MissingWarning {
		t.Errorf("Missing = %v, want warning default", cfg.I18n.Missing)
	}
}

func TestLoadFullManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
root = "app"
out = "dist"
roots = ["main.em", "polyfills.em"]
entry = "app.module.em"
main = "main.em"

[compiler]
mode = "aot"
no_codegen = true
deferred_structure = true

[compiler.extra]
strict = "true"

[i18n]
locale = "fr-CA"
data_dir = "locales"
missing_translation = "error"

[worker]
enabled = false
args = ["--max-old-space-size=4096"]

[paths]
"/virtual" = "/real"
`)

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "app")
	if cfg.BasePath != base {
		t.Errorf("BasePath = %q, want %q", cfg.BasePath, base)
	}
	if want := filepath.Join(dir, "dist"); cfg.OutDir != want {
		t.Errorf("OutDir = %q, want %q", cfg.OutDir, want)
	}
	if cfg.Compiler.Mode != compilerapi.ModeAOT || !cfg.Compiler.NoCodegen || !cfg.Compiler.DeferredStructure {
		t.Errorf("Compiler = %+v", cfg.Compiler)
	}
	if cfg.Compiler.Extra["strict"] != "true" {
		t.Errorf("Extra = %v", cfg.Compiler.Extra)
	}
	if want := filepath.Join(base, "app.module.em"); cfg.EntryPoint != want {
		t.Errorf("EntryPoint = %q, want %q", cfg.EntryPoint, want)
	}
	if cfg.I18n.Locale != "fr-CA" || cfg.I18n.Missing != MissingError {
		t.Errorf("I18n = %+v", cfg.I18n)
	}
	// data_dir resolves against the manifest dir, not the project root.
	if want := filepath.Join(dir, "locales"); cfg.I18n.DataDir != want {
		t.Errorf("DataDir = %q, want %q", cfg.I18n.DataDir, want)
	}
	if cfg.WorkerEnabled {
		t.Error("worker not disabled by manifest")
	}
	if len(cfg.WorkerArgs) != 1 || cfg.WorkerArgs[0] != "--max-old-space-size=4096" {
		t.Errorf("WorkerArgs = %v", cfg.WorkerArgs)
	}
	if cfg.PathReplacements["/virtual"] != "/real" {
		t.Errorf("PathReplacements = %v", cfg.PathReplacements)
	}
}

func TestLoadOverridesBeatManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
roots = ["main.em"]
entry = "manifest.module.em"

[i18n]
locale = "de"
`)

	off := false
	cfg, err := Load(path, Overrides{
		EntryPoint: "override.module.em",
		NoCodegen:  &off,
		Locale:     "ru",
		Worker:     &off,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "override.module.em"); cfg.EntryPoint != want {
		t.Errorf("EntryPoint = %q, want override %q", cfg.EntryPoint, want)
	}
	if cfg.I18n.Locale != "ru" {
		t.Errorf("Locale = %q, want override ru", cfg.I18n.Locale)
	}
	if cfg.WorkerEnabled {
		t.Error("worker override ignored")
	}
}

func TestLoadExtraRoutesSorted(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[project]
roots = ["main.em"]
`)

	cfg, err := Load(path, Overrides{ExtraRoutes: map[string]string{
		"zeta":      "z.em",
		"alpha#Foo": "a.em",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.ExtraRoutes) != 2 {
		t.Fatalf("ExtraRoutes = %v", cfg.ExtraRoutes)
	}
	if cfg.ExtraRoutes[0].ModulePath != "alpha" || cfg.ExtraRoutes[0].ExportName != "Foo" {
		t.Errorf("first route = %+v, want alpha#Foo", cfg.ExtraRoutes[0])
	}
	if want := filepath.Join(dir, "z.em"); cfg.ExtraRoutes[1].TargetPath != want {
		t.Errorf("second route target = %q, want %q", cfg.ExtraRoutes[1].TargetPath, want)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		manifest string
		wantSub  string
	}{
		{name: "no roots", manifest: "[project]\n", wantSub: "no root files"},
		{name: "bad mode", manifest: "[project]\nroots=[\"m.em\"]\n[compiler]\nmode=\"turbo\"\n", wantSub: "invalid compiler mode"},
		{name: "bad policy", manifest: "[project]\nroots=[\"m.em\"]\n[i18n]\nmissing_translation=\"panic\"\n", wantSub: "missing-translation policy"},
		{name: "bad toml", manifest: "[project\n", wantSub: "TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-"))
			if err := os.MkdirAll(sub, 0o750); err != nil {
				t.Fatal(err)
			}
			path := writeManifest(t, sub, tt.manifest)
			if _, err := Load(path, Overrides{}); err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load("", Overrides{}); err != ErrMissingConfigPath {
		t.Fatalf("err = %v, want ErrMissingConfigPath", err)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	want := writeManifest(t, root, "[project]\nroots=[\"m.em\"]\n")

	got, ok, err := FindManifest(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != want {
		t.Fatalf("FindManifest = %q, %v; want %q, true", got, ok, want)
	}
}

func TestFindManifestMissing(t *testing.T) {
	_, ok, err := FindManifest(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("found a manifest in an empty tree")
	}
}

func TestParseMissingTranslation(t *testing.T) {
	tests := []struct {
		in      string
		want    MissingTranslation
		wantErr bool
	}{
		{in: "", want: MissingWarning},
		{in: "warning", want: MissingWarning},
		{in: "error", want: MissingError},
		{in: "ignore", want: MissingIgnore},
		{in: "nope", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMissingTranslation(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}
