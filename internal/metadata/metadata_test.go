package metadata

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeWheel(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractFromWheel(t *testing.T) {
	dir := t.TempDir()
	wheelPath := filepath.Join(dir, "demo-1.0-py3-none-any.whl")
	writeWheel(t, wheelPath, map[string]string{
		"demo/__init__.py":           "",
		"demo-1.0.dist-info/METADATA": "Name: demo\nVersion: 1.0\n",
		"demo-1.0.dist-info/WHEEL":    "Wheel-Version: 1.0\n",
	})

	metadataDir := filepath.Join(dir, "meta")
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	distInfo, err := ExtractFromWheel(wheelPath, metadataDir)
	if err != nil {
		t.Fatalf("ExtractFromWheel: %v", err)
	}
	if filepath.Base(distInfo) != "demo-1.0.dist-info" {
		t.Fatalf("got %q", distInfo)
	}
	if _, err := os.Stat(filepath.Join(distInfo, "METADATA")); err != nil {
		t.Fatalf("METADATA not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(metadataDir, "demo", "__init__.py")); err == nil {
		t.Fatal("non-dist-info entry should not have been extracted")
	}
}

func TestExtractFromWheelMissingDistInfo(t *testing.T) {
	dir := t.TempDir()
	wheelPath := filepath.Join(dir, "empty.whl")
	writeWheel(t, wheelPath, map[string]string{"demo/__init__.py": ""})

	_, err := ExtractFromWheel(wheelPath, dir)
	if err == nil {
		t.Fatal("expected an error for a wheel with no .dist-info")
	}
}

func TestHashArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := HashArtifact(path)
	if err != nil {
		t.Fatalf("HashArtifact: %v", err)
	}
	h2, err := HashArtifact(path)
	if err != nil {
		t.Fatalf("HashArtifact: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) == 0 {
		t.Fatal("empty hash")
	}
}
