// Package testbackend is a Go-native stand-in build backend used by the
// test suite and registered with cmd/pep517run-host under the name
// "testbackend". It produces real zip/tar.gz artifacts with a
// .dist-info tree, the same shape rimraf-adi-zephyr's WheelInstaller
// expects to unpack, so the frontend's metadata-from-wheel fallback can be
// exercised end-to-end without a Python interpreter.
package testbackend

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"pep517run/internal/hostproc"
)

// Config controls which hooks the backend exposes and what it names itself,
// so tests can exercise MissingCommand paths by omitting hooks.
type Config struct {
	Name                   string
	DistName               string
	Version                string
	WithPrepareMetadata    bool
	WithBuildEditable      bool
	WithGetRequiresSdist   bool
	WithGetRequiresWheel   bool
	WithGetRequiresEditable bool
	// EmptyWheel, when set, makes build_wheel produce a zip with no
	// .dist-info entry, exercising the "wheel without dist-info" failure.
	EmptyWheel bool
	// FailBuildSdist, when set, makes build_sdist always return a backend
	// error instead of an artifact — used to exercise the reuse-mode
	// invariant that one failing command does not affect the next.
	FailBuildSdist bool
}

func init() {
	hostproc.RegisterAdapter("testbackend", func(object string) (*hostproc.Backend, error) {
		cfg := Config{
			WithPrepareMetadata:     object == "full",
			WithBuildEditable:       object == "full",
			WithGetRequiresSdist:    object == "full",
			WithGetRequiresWheel:    object == "full",
			WithGetRequiresEditable: object == "full",
		}
		return New(cfg), nil
	})
}

// New builds a *hostproc.Backend implementing the subset of hooks Config
// requests.
func New(cfg Config) *hostproc.Backend {
	if cfg.Name == "" {
		cfg.Name = "testbackend"
	}
	if cfg.DistName == "" {
		cfg.DistName = "demo"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	b := hostproc.NewBackend(cfg.Name)

	b.Register("build_sdist", func(kwargs map[string]any) (any, error) {
		if cfg.FailBuildSdist {
			return nil, &hostproc.NamedError{Type: "ValueError", Msg: "testbackend: build_sdist intentionally failing"}
		}
		dir, _ := kwargs["sdist_directory"].(string)
		path, err := buildSdist(dir, cfg.DistName, cfg.Version)
		if err != nil {
			return nil, err
		}
		return path, nil
	})

	b.Register("build_wheel", func(kwargs map[string]any) (any, error) {
		dir, _ := kwargs["wheel_directory"].(string)
		path, err := buildWheel(dir, cfg.DistName, cfg.Version, cfg.EmptyWheel)
		if err != nil {
			return nil, err
		}
		return path, nil
	})

	if cfg.WithBuildEditable {
		b.Register("build_editable", func(kwargs map[string]any) (any, error) {
			dir, _ := kwargs["wheel_directory"].(string)
			path, err := buildWheel(dir, cfg.DistName, cfg.Version, cfg.EmptyWheel)
			if err != nil {
				return nil, err
			}
			return path, nil
		})
	}

	if cfg.WithGetRequiresSdist {
		b.Register("get_requires_for_build_sdist", func(map[string]any) (any, error) {
			return []string{}, nil
		})
	}
	if cfg.WithGetRequiresWheel {
		b.Register("get_requires_for_build_wheel", func(map[string]any) (any, error) {
			return []string{}, nil
		})
	}
	if cfg.WithGetRequiresEditable {
		b.Register("get_requires_for_build_editable", func(map[string]any) (any, error) {
			return []string{}, nil
		})
	}

	if cfg.WithPrepareMetadata {
		prep := func(kwargs map[string]any) (any, error) {
			dir, _ := kwargs["metadata_directory"].(string)
			return prepareMetadata(dir, cfg.DistName, cfg.Version)
		}
		b.Register("prepare_metadata_for_build_wheel", prep)
		b.Register("prepare_metadata_for_build_editable", prep)
	}

	return b
}

func distInfoName(name, version string) string {
	return fmt.Sprintf("%s-%s.dist-info", name, version)
}

func metadataContent(name, version string) []byte {
	return []byte(fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\n", name, version))
}

func prepareMetadata(metadataDir, name, version string) (string, error) {
	distInfo := filepath.Join(metadataDir, distInfoName(name, version))
	if err := os.MkdirAll(distInfo, 0o755); err != nil {
		return "", fmt.Errorf("testbackend: creating dist-info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(distInfo, "METADATA"), metadataContent(name, version), 0o644); err != nil {
		return "", fmt.Errorf("testbackend: writing METADATA: %w", err)
	}
	return distInfo, nil
}

func buildWheel(wheelDir, name, version string, empty bool) (string, error) {
	if err := os.MkdirAll(wheelDir, 0o755); err != nil {
		return "", fmt.Errorf("testbackend: creating wheel directory: %w", err)
	}
	wheelPath := filepath.Join(wheelDir, fmt.Sprintf("%s-%s-py3-none-any.whl", name, version))

	f, err := os.Create(wheelPath)
	if err != nil {
		return "", fmt.Errorf("testbackend: creating wheel file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if !empty {
		distInfo := distInfoName(name, version)
		w, err := zw.Create(distInfo + "/METADATA")
		if err != nil {
			return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
		}
		if _, err := w.Write(metadataContent(name, version)); err != nil {
			return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
		}
		w, err = zw.Create(distInfo + "/WHEEL")
		if err != nil {
			return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
		}
		if _, err := w.Write([]byte("Wheel-Version: 1.0\nGenerator: testbackend\n")); err != nil {
			return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
		}
	}

	w, err := zw.Create(name + "/__init__.py")
	if err != nil {
		return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
	}
	if _, err := w.Write([]byte("")); err != nil {
		return "", fmt.Errorf("testbackend: writing wheel entry: %w", err)
	}

	return wheelPath, nil
}

func buildSdist(sdistDir, name, version string) (string, error) {
	if err := os.MkdirAll(sdistDir, 0o755); err != nil {
		return "", fmt.Errorf("testbackend: creating sdist directory: %w", err)
	}
	sdistPath := filepath.Join(sdistDir, fmt.Sprintf("%s-%s.tar.gz", name, version))

	f, err := os.Create(sdistPath)
	if err != nil {
		return "", fmt.Errorf("testbackend: creating sdist file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	content := []byte(fmt.Sprintf("[build-system]\nrequires = []\n"))
	hdr := &tar.Header{
		Name: fmt.Sprintf("%s-%s/pyproject.toml", name, version),
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("testbackend: writing sdist entry: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return "", fmt.Errorf("testbackend: writing sdist entry: %w", err)
	}

	return sdistPath, nil
}
