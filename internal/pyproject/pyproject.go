// Package pyproject discovers a project's build-backend descriptor from
// its pyproject.toml, or synthesizes the legacy setuptools defaults when
// none is present.
package pyproject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"pep517run/internal/requirement"
)

// Descriptor is the input to Frontend construction: everything needed to
// spawn a backend host bound to a specific project.
type Descriptor struct {
	Root          string
	BackendPaths  []string
	BackendModule string
	BackendObject string // "" if the build-backend has no trailing object
	Requires      []requirement.Requirement
	IsLegacy      bool
}

const (
	legacyBackendModule = "setuptools.build_meta"
	legacyBackendObject = "__legacy__"
)

func legacyRequires() []requirement.Requirement {
	reqs, err := requirement.ParseAll([]string{"setuptools>=40.8.0", "wheel"})
	if err != nil {
		// Both specifiers are fixed literals under this package's control;
		// a parse failure here would mean Parse itself regressed.
		panic(fmt.Sprintf("pyproject: legacy requirement literals failed to parse: %v", err))
	}
	return reqs
}

type buildSystemTable struct {
	Requires    []string `toml:"requires"`
	BuildBackend string  `toml:"build-backend"`
	BackendPath []string `toml:"backend-path"`
}

type pyprojectFile struct {
	BuildSystem buildSystemTable `toml:"build-system"`
}

// CreateArgsFromFolder reads pyproject.toml under root, if present, and
// returns the Descriptor driving a SubprocessFrontend. A missing
// pyproject.toml, or one with an empty [build-system] table, yields the
// legacy defaults.
func CreateArgsFromFolder(root string) (Descriptor, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Descriptor{}, fmt.Errorf("pyproject: resolving project root: %w", err)
	}

	path := filepath.Join(absRoot, "pyproject.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return legacyDescriptor(absRoot), nil
		}
		return Descriptor{}, fmt.Errorf("pyproject: reading %s: %w", path, err)
	}

	var doc pyprojectFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Descriptor{}, fmt.Errorf("pyproject: parsing %s: %w", path, err)
	}

	if doc.BuildSystem.BuildBackend == "" {
		return legacyDescriptor(absRoot), nil
	}

	module, object := splitBackendSpec(doc.BuildSystem.BuildBackend)

	requires := doc.BuildSystem.Requires
	if requires == nil {
		requires = []string{}
	}
	parsedRequires, err := requirement.ParseAll(requires)
	if err != nil {
		return Descriptor{}, fmt.Errorf("pyproject: build-system.requires: %w", err)
	}

	backendPaths := doc.BuildSystem.BackendPath
	if backendPaths == nil {
		backendPaths = []string{}
	}
	for i, p := range backendPaths {
		if !filepath.IsAbs(p) {
			backendPaths[i] = filepath.Join(absRoot, p)
		}
	}

	return Descriptor{
		Root:          absRoot,
		BackendPaths:  backendPaths,
		BackendModule: module,
		BackendObject: object,
		Requires:      parsedRequires,
		IsLegacy:      false,
	}, nil
}

func legacyDescriptor(absRoot string) Descriptor {
	return Descriptor{
		Root:          absRoot,
		BackendPaths:  []string{},
		BackendModule: legacyBackendModule,
		BackendObject: legacyBackendObject,
		Requires:      legacyRequires(),
		IsLegacy:      true,
	}
}

// splitBackendSpec splits "module:object" into its parts. A trailing colon
// ("module:object:") is tolerated and treated the same as "module:object".
func splitBackendSpec(spec string) (module, object string) {
	spec = strings.TrimSuffix(spec, ":")
	module, object, found := strings.Cut(spec, ":")
	if !found {
		return spec, ""
	}
	return module, object
}
