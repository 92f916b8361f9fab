package frontend_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"pep517run/internal/frontend"
	"pep517run/internal/pyproject"
	"pep517run/internal/wire"
)

func buildHostBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "pep517run-host-test")

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	root := cwd
	for i := 0; i < 6; i++ {
		if _, statErr := os.Stat(filepath.Join(root, "go.mod")); statErr == nil {
			break
		}
		root = filepath.Dir(root)
	}

	cmd := exec.Command("go", "build", "-o", bin, filepath.Join(root, "cmd", "pep517run-host"))
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Skipf("could not build pep517run-host (skip if go toolchain unavailable here): %v, out=%s", err, out)
	}
	return bin
}

func TestMetadataFromWheelFallbackEndToEnd(t *testing.T) {
	bin := buildHostBinary(t)
	projectRoot := t.TempDir()

	desc := pyproject.Descriptor{
		Root:          projectRoot,
		BackendModule: "testbackend",
		BackendObject: "",
	}
	f, err := frontend.NewSubprocessFrontend(desc, frontend.WithHostBinary(bin))
	if err != nil {
		t.Fatalf("NewSubprocessFrontend: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	metadataDir := filepath.Join(projectRoot, "meta")
	res, err := f.PrepareMetadataForBuildWheel(ctx, metadataDir, nil)
	if err != nil {
		t.Fatalf("PrepareMetadataForBuildWheel: %v", err)
	}
	if filepath.Base(res.Path) != "demo-0.1.0.dist-info" {
		t.Fatalf("got dist-info path %q", res.Path)
	}
	if _, statErr := os.Stat(filepath.Join(res.Path, "METADATA")); statErr != nil {
		t.Fatalf("METADATA missing: %v", statErr)
	}
}

func TestMissingCommandProjectionAtFrontend(t *testing.T) {
	bin := buildHostBinary(t)
	projectRoot := t.TempDir()

	desc := pyproject.Descriptor{Root: projectRoot, BackendModule: "testbackend"}
	f, err := frontend.NewSubprocessFrontend(desc, frontend.WithHostBinary(bin))
	if err != nil {
		t.Fatalf("NewSubprocessFrontend: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err = f.BuildEditable(ctx, filepath.Join(projectRoot, "out"), nil, "")
	if err == nil {
		t.Fatal("expected an error: testbackend default config has no build_editable hook")
	}
	failure, ok := err.(*wire.Failure)
	if !ok {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	if failure.ExcType != wire.ErrMissingCommand {
		t.Fatalf("got exc_type %q, want %q", failure.ExcType, wire.ErrMissingCommand)
	}
}

func TestReuseModeAmortizesAcrossCommands(t *testing.T) {
	bin := buildHostBinary(t)
	projectRoot := t.TempDir()

	desc := pyproject.Descriptor{Root: projectRoot, BackendModule: "testbackend", BackendObject: "full"}
	f, err := frontend.NewSubprocessFrontend(desc, frontend.WithHostBinary(bin), frontend.WithReuse(true))
	if err != nil {
		t.Fatalf("NewSubprocessFrontend: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := f.BuildSdist(ctx, filepath.Join(projectRoot, "sdist"), nil); err != nil {
		t.Fatalf("BuildSdist: %v", err)
	}
	if _, err := f.BuildWheel(ctx, filepath.Join(projectRoot, "wheel"), nil, ""); err != nil {
		t.Fatalf("BuildWheel: %v", err)
	}
}
