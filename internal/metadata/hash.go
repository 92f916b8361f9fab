package metadata

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashArtifact returns the hex-encoded BLAKE3 digest of the file at path,
// recorded alongside each built sdist/wheel in the build history log.
func HashArtifact(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("metadata: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("metadata: hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
