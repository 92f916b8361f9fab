// Package metadata extracts a built wheel's .dist-info tree into a target
// directory — the fallback the Frontend uses when a backend implements
// build_wheel/build_editable but not prepare_metadata_for_build_{wheel,editable}.
package metadata

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractFromWheel opens wheelPath as a zip, locates the unique top-level
// entry ending in ".dist-info/", and extracts everything under that prefix
// into metadataDir (which the caller has already emptied per the
// Frontend's recreate-before-dispatch rule). It returns the path of the
// extracted .dist-info directory: metadataDir joined with its name, so it is
// absolute only when metadataDir is.
func ExtractFromWheel(wheelPath, metadataDir string) (string, error) {
	r, err := zip.OpenReader(wheelPath)
	if err != nil {
		return "", fmt.Errorf("metadata: opening wheel %s: %w", wheelPath, err)
	}
	defer r.Close()

	distInfoPrefix, err := findDistInfoPrefix(r.File)
	if err != nil {
		return "", err
	}

	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, distInfoPrefix) {
			continue
		}
		if err := extractEntry(f, metadataDir, distInfoPrefix); err != nil {
			return "", err
		}
	}

	return filepath.Join(metadataDir, strings.TrimSuffix(distInfoPrefix, "/")), nil
}

// findDistInfoPrefix returns the unique "<name>-<version>.dist-info/" entry
// prefix among files, or a RuntimeError-shaped error if none is found.
func findDistInfoPrefix(files []*zip.File) (string, error) {
	seen := map[string]bool{}
	for _, f := range files {
		idx := strings.Index(f.Name, ".dist-info/")
		if idx < 0 {
			continue
		}
		// Only a top-level ".dist-info" directory counts: no "/" before it.
		candidate := f.Name[:idx+len(".dist-info/")]
		if strings.Contains(strings.TrimSuffix(candidate, "/"), "/") {
			continue
		}
		seen[candidate] = true
	}
	if len(seen) == 0 {
		return "", fmt.Errorf("no .dist-info found inside generated wheel")
	}
	// Prefer a deterministic choice if, pathologically, more than one
	// top-level .dist-info entry exists.
	var prefixes []string
	for p := range seen {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes[0], nil
}

func extractEntry(f *zip.File, metadataDir, prefix string) error {
	rel := strings.TrimPrefix(f.Name, prefix)
	if rel == "" {
		return nil
	}
	target := filepath.Join(metadataDir, strings.TrimSuffix(prefix, "/"), rel)

	if strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("metadata: creating directory for %s: %w", target, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("metadata: opening wheel entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("metadata: creating %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("metadata: extracting %s: %w", f.Name, err)
	}
	return nil
}
