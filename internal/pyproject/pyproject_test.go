package pyproject

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLegacyDefaultsWhenNoPyproject(t *testing.T) {
	dir := t.TempDir()
	desc, err := CreateArgsFromFolder(dir)
	if err != nil {
		t.Fatalf("CreateArgsFromFolder: %v", err)
	}
	if !desc.IsLegacy {
		t.Fatal("expected IsLegacy")
	}
	if desc.BackendModule != legacyBackendModule || desc.BackendObject != legacyBackendObject {
		t.Fatalf("got module=%q object=%q", desc.BackendModule, desc.BackendObject)
	}
	if len(desc.Requires) != 2 || desc.Requires[0].Name != "setuptools" || desc.Requires[1].Name != "wheel" {
		t.Fatalf("unexpected legacy requires: %+v", desc.Requires)
	}
}

func TestEmptyBuildSystemTableYieldsLegacyDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[build-system]\n")
	desc, err := CreateArgsFromFolder(dir)
	if err != nil {
		t.Fatalf("CreateArgsFromFolder: %v", err)
	}
	if !desc.IsLegacy {
		t.Fatal("expected IsLegacy for an empty build-system table")
	}
	if desc.BackendModule != legacyBackendModule {
		t.Fatalf("got backend module %q", desc.BackendModule)
	}
}

func TestExplicitBackendWithoutObject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[build-system]
requires = ["flit_core>=3.2"]
build-backend = "flit_core.buildapi"
`)
	desc, err := CreateArgsFromFolder(dir)
	if err != nil {
		t.Fatalf("CreateArgsFromFolder: %v", err)
	}
	if desc.IsLegacy {
		t.Fatal("did not expect legacy defaults")
	}
	if desc.BackendModule != "flit_core.buildapi" {
		t.Fatalf("got backend module %q", desc.BackendModule)
	}
	if desc.BackendObject != "" {
		t.Fatalf("got backend object %q, want empty", desc.BackendObject)
	}
	if len(desc.Requires) != 1 || desc.Requires[0].Name != "flit_core" {
		t.Fatalf("unexpected requires: %+v", desc.Requires)
	}
}

func TestTrailingColonInBackendSpecTolerated(t *testing.T) {
	module, object := splitBackendSpec("mybackend.api:Backend:")
	if module != "mybackend.api" || object != "Backend" {
		t.Fatalf("got module=%q object=%q", module, object)
	}
}

func TestBackendPathMadeAbsoluteRelativeToRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[build-system]
requires = []
build-backend = "mybackend:api"
backend-path = ["./_backend"]
`)
	desc, err := CreateArgsFromFolder(dir)
	if err != nil {
		t.Fatalf("CreateArgsFromFolder: %v", err)
	}
	want := filepath.Join(dir, "_backend")
	if len(desc.BackendPaths) != 1 || desc.BackendPaths[0] != want {
		t.Fatalf("got backend paths %v, want [%s]", desc.BackendPaths, want)
	}
}
